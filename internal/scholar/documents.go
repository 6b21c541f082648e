// Package scholar defines the document types that scholarfind tasks
// produce and persist: search records listing retrieved URLs, scholarship
// annotations extracted by the agent, and the student profile used to
// filter them.
package scholar

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Enum value sets the annotation agent is allowed to emit. The agent prompt
// names these values verbatim; anything else in an enum field is rejected
// during validation.
const (
	DegreeAssociate    = "ASSOCIATE"
	DegreeBachelor     = "BACHELOR"
	DegreeMaster       = "MASTER"
	DegreeDoctorate    = "DOCTORATE"
	DegreeCertificate  = "CERTIFICATE"
	DegreeTrade        = "TRADE"
	DegreeNotSpecified = "NOT_SPECIFIED"
)

const (
	EducationHighSchool    = "HIGH_SCHOOL"
	EducationUndergraduate = "UNDERGRADUATE"
	EducationGraduate      = "GRADUATE"
	EducationNotSpecified  = "NOT_SPECIFIED"
)

const (
	SupplementEssay          = "ESSAY"
	SupplementTranscript     = "TRANSCRIPT"
	SupplementRecommendation = "RECOMMENDATION"
	SupplementResume         = "RESUME"
	SupplementFinancialInfo  = "FINANCIAL_INFO"
	SupplementPortfolio      = "PORTFOLIO"
)

// SearchDocument is one search task's output: the source page that was
// scraped, when it was scraped, and every URL retrieved from it.
type SearchDocument struct {
	Source    string   `json:"source"`
	Date      string   `json:"date"`
	Time      string   `json:"time"`
	Retrieved []string `json:"retrieved"`
}

// NewSearchDocument stamps a search record with the current date and time.
func NewSearchDocument(source string) *SearchDocument {
	now := time.Now()
	return &SearchDocument{
		Source:    source,
		Date:      now.Format("2006-01-02"),
		Time:      now.Format("15:04:05"),
		Retrieved: make([]string, 0),
	}
}

// Annotation is the structured scholarship record the agent extracts from
// one page. Nullable fields stay nil when the page does not state them;
// date fields are ISO-8601 (YYYY-MM-DD) strings.
type Annotation struct {
	Name         string   `json:"name"`
	Organization string   `json:"organization"`
	URL          string   `json:"url"`
	Award        *float64 `json:"award"`
	Open         *string  `json:"open"`
	Close        *string  `json:"close"`
	Pursued      []string `json:"pursued"`
	Education    []string `json:"education"`
	Supplements  []string `json:"supplements"`
	Requirements []string `json:"requirements"`
}

// Profile is a free-form student profile: eligibility attributes (GPA,
// citizenship, major, demographics) plus optional preference constraints
// such as a minimum award. The filter agent evaluates it literally, so no
// fixed schema is imposed here.
type Profile map[string]any

// LoadProfile reads a student profile from a JSON file.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}

	var profile Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	return profile, nil
}
