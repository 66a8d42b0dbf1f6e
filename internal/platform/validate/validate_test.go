package validate

import "testing"

func TestNIC(t *testing.T) {
	valid := []string{"912345678V", "912345678v", "912345678X", "200012345678"}
	invalid := []string{"", "91234567V", "9123456789", "2000123456789", "ABCDEFGHIJ", "912345678Z"}
	for _, s := range valid {
		if !NIC(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	for _, s := range invalid {
		if NIC(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
	if NormalizeNIC(" 912345678v ") != "912345678V" {
		t.Error("NormalizeNIC should trim and upper-case")
	}
}

func TestPhone(t *testing.T) {
	if !Phone("0771234567") {
		t.Error("expected local mobile number to be valid")
	}
	for _, s := range []string{"771234567", "+94771234567", "077123456a", "07712345678"} {
		if Phone(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestEmail(t *testing.T) {
	if !Email("nimal@lab.lk") {
		t.Error("expected valid email")
	}
	for _, s := range []string{"nimal", "nimal@lab", "ni mal@lab.lk", "@lab.lk"} {
		if Email(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}
