package domain

type TurnaroundRule struct {
	Folder string         `json:"folder" yaml:"folder"`
	Tier   TurnaroundTier `json:"tier" yaml:"tier"`
}

type CategoryRule struct {
	Folder   string   `json:"folder" yaml:"folder"`
	Category Category `json:"category" yaml:"category"`
}

// RuleTables are the lookup tables driving folder-based classification and
// folder exclusion.
type RuleTables struct {
	Turnaround           []TurnaroundRule `json:"turnaround" yaml:"turnaround"`
	Categories           []CategoryRule   `json:"categories" yaml:"categories"`
	NeverProcessKeywords []string         `json:"never_process_keywords" yaml:"never_process_keywords"`
}

func DefaultRuleTables() RuleTables {
	return RuleTables{
		Turnaround: []TurnaroundRule{
			{Folder: "1-2 Business Days", Tier: TurnaroundRushed},
			{Folder: "3-5 Business Days", Tier: TurnaroundStandard},
			{Folder: "6-10 Business Days", Tier: TurnaroundExtended},
		},
		Categories: []CategoryRule{
			{Folder: "Legal Clients", Category: CategoryLegal},
			{Folder: "Law Enforcement Clients", Category: CategoryLawEnforcement},
			{Folder: "Medical Clients", Category: CategoryMedical},
			{Folder: "General Clients", Category: CategoryGeneral},
			{Folder: "Corporate Clients", Category: CategoryGeneral},
			{Folder: "Academic Clients", Category: CategoryGeneral},
			{Folder: "Spanish Clients", Category: CategoryGeneral},
			{Folder: "Copy Typing Clients", Category: CategoryGeneral},
		},
		NeverProcessKeywords: []string{"Archive", "Completed Transcripts"},
	}
}
