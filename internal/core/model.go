package core

// Category is one of the fixed set of labels an email can be classified into
type Category string

const (
	CategoryImportant   Category = "important"
	CategoryPromotional Category = "promotional"
	CategorySocial      Category = "social"
	CategoryMarketing   Category = "marketing"
	CategorySpam        Category = "spam"
	CategoryGeneral     Category = "general"
)

// AllCategories lists every valid category, in prompt order
var AllCategories = []Category{
	CategoryImportant,
	CategoryPromotional,
	CategorySocial,
	CategoryMarketing,
	CategorySpam,
	CategoryGeneral,
}

// Email represents one message retrieved from the mailbox service.
// Date keeps the original header value, unparsed.
type Email struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	From    string `json:"from"`
	Snippet string `json:"snippet"`
	Body    string `json:"body"`
	Date    string `json:"date"`
}

// Content returns the text used for classification: the reconstructed
// plain-text body when present, otherwise the mailbox-supplied snippet.
func (e *Email) Content() string {
	if e.Body != "" {
		return e.Body
	}
	return e.Snippet
}

// ClassificationResult is the outcome of classifying a single email.
// JSON tags match the shape the inference endpoint is instructed to emit.
type ClassificationResult struct {
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

// ClassifiedEmail pairs an email with its classification result
type ClassifiedEmail struct {
	Email  Email                `json:"email"`
	Result ClassificationResult `json:"result"`
}

// FallbackResult is the substitute classification recorded when a
// classification call fails irrecoverably for one email.
func FallbackResult() ClassificationResult {
	return ClassificationResult{
		Category:   CategoryGeneral,
		Confidence: 0.5,
		Reasoning:  "Classification failed, using general as fallback",
	}
}
