package extract

import "strings"

// accessDSN builds an ODBC connection string for the Access driver.
// Values containing ';' or braces are brace-quoted per the ODBC grammar.
func accessDSN(driver, path string) string {
	return "Driver=" + odbcValue(driver) + ";DBQ=" + odbcValue(path) + ";"
}

func odbcValue(v string) string {
	if strings.HasPrefix(v, "{") && strings.HasSuffix(v, "}") {
		return v
	}
	return "{" + strings.ReplaceAll(v, "}", "}}") + "}"
}
