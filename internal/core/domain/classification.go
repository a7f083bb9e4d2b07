package domain

type Category string

const (
	CategoryLegal          Category = "Legal"
	CategoryLawEnforcement Category = "Law Enforcement"
	CategoryMedical        Category = "Medical"
	CategoryGeneral        Category = "General"
)

func ParseCategory(raw string) (Category, bool) {
	switch Category(raw) {
	case CategoryLegal, CategoryLawEnforcement, CategoryMedical, CategoryGeneral:
		return Category(raw), true
	}
	return "", false
}

// TurnaroundTier values double as the ledger TAT column vocabulary.
type TurnaroundTier string

const (
	TurnaroundRushed   TurnaroundTier = "Rush"
	TurnaroundStandard TurnaroundTier = "Standard"
	TurnaroundExtended TurnaroundTier = "Extended"
)

func ParseTurnaround(raw string) (TurnaroundTier, bool) {
	switch TurnaroundTier(raw) {
	case TurnaroundRushed, TurnaroundStandard, TurnaroundExtended:
		return TurnaroundTier(raw), true
	}
	return "", false
}

type ClientSource string

const (
	ClientSourceNone     ClientSource = ""
	ClientSourceFolder   ClientSource = "folder"
	ClientSourceUploader ClientSource = "uploader"
)

type ClassificationResult struct {
	Category     Category       `json:"category"`
	Turnaround   TurnaroundTier `json:"turnaround"`
	ClientName   string         `json:"client_name,omitempty"`
	ClientSource ClientSource   `json:"client_source,omitempty"`
}
