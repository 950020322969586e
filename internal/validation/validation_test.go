package validation

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunBailsOnFirstFailure(t *testing.T) {
	t.Parallel()

	e := New()
	schema := Schema{{
		Name: "pwd",
		Rules: []Rule{
			{Tag: "min=8,max=25", Message: "length"},
			{Tag: "strong_password", Message: "strength"},
		},
	}}

	res := e.Run(schema, Values(url.Values{"pwd": {"short"}}))
	assert.Equal(t, []string{"length"}, res.Violations["pwd"])

	res = e.Run(schema, Values(url.Values{"pwd": {"alllowercase1"}}))
	assert.Equal(t, []string{"strength"}, res.Violations["pwd"])

	res = e.Run(schema, Values(url.Values{"pwd": {"Abcdefg1"}}))
	assert.False(t, res.Violations.Has("pwd"))
}

func TestRunPredicatesAndSanitizers(t *testing.T) {
	t.Parallel()

	e := New()
	schema := Schema{
		{
			Name:     "email",
			When:     Exists("email"),
			Sanitize: []Sanitizer{Trim},
			Rules:    []Rule{{Tag: "email", Message: "bad email"}},
		},
		{
			Name: "phone",
			Rules: []Rule{
				{When: NotEmpty("phone"), Tag: "us_phone", Message: "bad phone"},
			},
		},
	}

	res := e.Run(schema, Values(url.Values{}))
	assert.Empty(t, res.Violations)

	res = e.Run(schema, Values(url.Values{"email": {"  a@b.ca "}, "phone": {""}}))
	assert.Empty(t, res.Violations)
	assert.Equal(t, "a@b.ca", res.Sanitized["email"])

	res = e.Run(schema, Values(url.Values{"email": {""}, "phone": {"123"}}))
	assert.Equal(t, "bad email", res.Violations.First("email"))
	assert.Equal(t, "bad phone", res.Violations.First("phone"))
	assert.Equal(t, map[string]string{"email": "bad email", "phone": "bad phone"}, res.Violations.Mapped())
}

func TestRunFuncRule(t *testing.T) {
	t.Parallel()

	e := New()
	uploaded := false
	schema := Schema{{
		Name: "file1",
		Rules: []Rule{{
			When:    func(Input) bool { return !uploaded },
			Func:    func(string) bool { return false },
			Message: "File is required when specifying a title",
		}},
	}}

	res := e.Run(schema, Values(nil))
	require.True(t, res.Violations.Has("file1"))

	uploaded = true
	res = e.Run(schema, Values(nil))
	assert.False(t, res.Violations.Has("file1"))
}

func TestRunIsDeterministic(t *testing.T) {
	t.Parallel()

	e := New()
	schema := Schema{{Name: "agreed", Rules: []Rule{{Tag: "eq=yes", Message: "must agree"}}}}
	in := Values(url.Values{"agreed": {"no"}})
	assert.Equal(t, e.Run(schema, in).Violations, e.Run(schema, in).Violations)
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, exp string
	}{
		{"Some.One+tag@GoogleMail.com", "someone@gmail.com"},
		{"Jane.Doe@Example.CA", "jane.doe@example.ca"},
		{"not-an-email", "not-an-email"},
		{"a@b@c", "a@b@c"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.exp, NormalizeEmail(tt.in), tt.in)
	}
}

func TestIsStrongPassword(t *testing.T) {
	t.Parallel()

	assert.True(t, IsStrongPassword("Passw0rd"))
	assert.False(t, IsStrongPassword("Pw0rd"))
	assert.False(t, IsStrongPassword("alllowercase1"))
	assert.False(t, IsStrongPassword("ALLUPPERCASE1"))
	assert.False(t, IsStrongPassword("NoDigitsHere"))
}

func TestIsUSPhone(t *testing.T) {
	t.Parallel()

	for _, ok := range []string{"(306) 551-0000", "306-551-0000", "3065510000", "+1 306 551 0000", "1-306-551-0000"} {
		assert.True(t, IsUSPhone(ok), ok)
	}
	for _, bad := range []string{"123", "(106) 551-0000", "306-151-0000", "306 551 000", "phone"} {
		assert.False(t, IsUSPhone(bad), bad)
	}
}
