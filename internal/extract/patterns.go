package extract

import "regexp"

// Fixed pattern tables for Indian financial news. Pattern matches keep the
// text's original casing as the entity name.

var bankPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bHDFC\s+Bank\b`),
	regexp.MustCompile(`(?i)\bICICI\s+Bank\b`),
	regexp.MustCompile(`(?i)\bAxis\s+Bank\b`),
	regexp.MustCompile(`(?i)\bKotak\s+Bank\b`),
	regexp.MustCompile(`(?i)\bSBI\b`),
	regexp.MustCompile(`(?i)\bState\s+Bank\s+of\s+India\b`),
}

var regulatorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bRBI\b`),
	regexp.MustCompile(`(?i)\bReserve\s+Bank\s+of\s+India\b`),
	regexp.MustCompile(`(?i)\bSEBI\b`),
	regexp.MustCompile(`(?i)\bNSE\b`),
	regexp.MustCompile(`(?i)\bBSE\b`),
}

var companyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bTCS\b`),
	regexp.MustCompile(`(?i)\bTata\s+Consultancy\b`),
	regexp.MustCompile(`(?i)\bInfosys\b`),
	regexp.MustCompile(`(?i)\bWipro\b`),
	regexp.MustCompile(`(?i)\bReliance\s+Industries\b`),
	regexp.MustCompile(`(?i)\bRIL\b`),
	regexp.MustCompile(`(?i)\bBharti\s+Airtel\b`),
	regexp.MustCompile(`(?i)\bMaruti\s+Suzuki\b`),
	regexp.MustCompile(`(?i)\bTata\s+Motors\b`),
	regexp.MustCompile(`(?i)\bL&T\b`),
	regexp.MustCompile(`(?i)\bLarsen\s+&\s+Toubro\b`),
	regexp.MustCompile(`(?i)\bSun\s+Pharma\b`),
}

// Organization spans carrying one of these markers are routed to companies.
var companyMarkers = []string{"bank", "ltd", "limited", "inc", "corp"}

// sectorKeywords is checked by plain containment against the lowercased text,
// so mixed-case keywords ("IT", "5G") only ever fire through the phrase
// patterns below.
var sectorKeywords = []struct {
	Sector   string
	Keywords []string
}{
	{"Banking", []string{"bank", "banking", "lender", "loan", "deposit", "credit"}},
	{"Financial Services", []string{"financial", "finance", "banking", "investment"}},
	{"IT", []string{"IT", "software", "technology", "digital", "tech", "consulting"}},
	{"Telecom", []string{"telecom", "telecommunication", "mobile", "5G", "network"}},
	{"Automobile", []string{"automobile", "auto", "vehicle", "car", "motor"}},
	{"Pharmaceutical", []string{"pharma", "pharmaceutical", "drug", "medicine"}},
	{"Infrastructure", []string{"infrastructure", "construction", "project", "metro"}},
}

var sectorPhrases = []struct {
	Pattern *regexp.Regexp
	Sector  string
}{
	{regexp.MustCompile(`(?i)\bbanking\s+sector\b`), "Banking"},
	{regexp.MustCompile(`(?i)\bIT\s+sector\b`), "IT"},
	{regexp.MustCompile(`(?i)\btelecom\s+sector\b`), "Telecom"},
	{regexp.MustCompile(`(?i)\bautomobile\s+sector\b`), "Automobile"},
	{regexp.MustCompile(`(?i)\bpharma\s+sector\b`), "Pharmaceutical"},
}
