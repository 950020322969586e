package api

import "lo1server/internal/validation"

const (
	msgAgree         = "You must agree to the terms and conditions"
	msgEmailRequired = "Email is required"
	msgEmailFormat   = "Email must be in a valid format"
	msgPasswordLen   = "The password must be 8 to 25 characters"
	msgPasswordMix   = "Password must contain lowercase, uppercase, and numbers"
	msgPhoneFormat   = "Phone must be a North American phone number. Example: (306) 551-0000"
)

// formPostSchema requires agreement, an email and a password; phone is
// checked only when filled in.
var formPostSchema = validation.Schema{
	{
		Name:  "agreed",
		Rules: []validation.Rule{{Tag: "eq=yes", Message: msgAgree}},
	},
	{
		Name:     "email",
		Sanitize: []validation.Sanitizer{validation.Trim, validation.NormalizeEmail},
		Rules: []validation.Rule{
			{Tag: "required", Message: msgEmailRequired},
			{Tag: "email", Message: msgEmailFormat},
		},
	},
	{
		Name: "pwd",
		Rules: []validation.Rule{
			{Tag: "min=8,max=25", Message: msgPasswordLen},
			{Tag: "strong_password", Message: msgPasswordMix},
		},
	},
	{
		Name:     "phone",
		When:     validation.NotEmpty("phone"),
		Sanitize: []validation.Sanitizer{validation.Trim},
		Rules:    []validation.Rule{{Tag: "us_phone", Message: msgPhoneFormat}},
	},
}

// formGetSchema checks the same fields, each only when present in the
// query string.
var formGetSchema = validation.Schema{
	{
		Name:  "agreed",
		When:  validation.Exists("agreed"),
		Rules: []validation.Rule{{Tag: "eq=yes", Message: msgAgree}},
	},
	{
		Name:     "email",
		When:     validation.Exists("email"),
		Sanitize: []validation.Sanitizer{validation.Trim},
		Rules:    []validation.Rule{{Tag: "email", Message: msgEmailFormat}},
	},
	{
		Name: "pwd",
		When: validation.Exists("pwd"),
		Rules: []validation.Rule{
			{Tag: "min=8,max=25", Message: msgPasswordLen},
			{Tag: "strong_password", Message: msgPasswordMix},
		},
	},
	{
		Name:     "phone",
		When:     validation.Exists("phone"),
		Sanitize: []validation.Sanitizer{validation.Trim},
		Rules:    []validation.Rule{{Tag: "us_phone", Message: msgPhoneFormat}},
	},
}
