package validation

import "regexp"

// North American Numbering Plan: optional +1/1 prefix, area code and exchange
// starting 2-9, optional space or dash separators.
var usPhonePattern = regexp.MustCompile(`^((\+1|1)?( |-)?)?(\([2-9][0-9]{2}\)|[2-9][0-9]{2})( |-)?([2-9][0-9]{2}( |-)?[0-9]{4})$`)

// IsUSPhone reports whether s is a North American mobile number.
func IsUSPhone(s string) bool {
	return usPhonePattern.MatchString(s)
}
