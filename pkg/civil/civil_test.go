package civil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	d, err := Parse("1990-05-17")
	require.NoError(t, err)
	assert.Equal(t, "1990-05-17", d.String())

	d, err = Parse("1990-05-17T22:10:00Z")
	require.NoError(t, err)
	assert.Equal(t, "1990-05-17", d.String())

	_, err = Parse("17/05/1990")
	assert.Error(t, err)
}

func TestJSON(t *testing.T) {
	var v struct {
		D   Date  `json:"d"`
		Opt *Date `json:"opt"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"d":"2024-02-29","opt":null}`), &v))
	assert.Equal(t, 29, v.D.Day())
	assert.Nil(t, v.Opt)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2024-02-29","opt":null}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"d":"tomorrow"}`), &v))
}

func TestBeforeDay(t *testing.T) {
	d, _ := Parse("2025-03-10")
	assert.True(t, d.BeforeDay(time.Date(2025, 3, 11, 0, 1, 0, 0, time.UTC)))
	assert.False(t, d.BeforeDay(time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC)))
}

func TestNotAfterDay(t *testing.T) {
	d, _ := Parse("2025-03-10")
	assert.True(t, d.NotAfterDay(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)))
	assert.True(t, d.NotAfterDay(time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)))
	assert.True(t, d.NotAfterDay(time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC)))
	assert.False(t, d.NotAfterDay(time.Date(2025, 3, 9, 23, 59, 0, 0, time.UTC)))
}

func TestPtr(t *testing.T) {
	assert.Nil(t, Ptr(nil))
	now := time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)
	p := Ptr(&now)
	require.NotNil(t, p)
	assert.Equal(t, "2025-01-02", p.String())
	assert.Equal(t, p.Time, *p.TimePtr())

	var nilDate *Date
	assert.Nil(t, nilDate.TimePtr())
}
