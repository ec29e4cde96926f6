package catalog

import "github.com/medcoding/medcoding/internal/domain/coding"

// =========== Shipped Diagnosis Table ===========

func defaultDiagnoses() []*coding.DiagnosisCode {
	return []*coding.DiagnosisCode{
		{
			Code:     "M25.561",
			Title:    "Pain in right knee",
			Includes: []string{"Right knee pain"},
			Excludes: []string{"Pain in left knee (M25.562)"},
			Synonyms: []string{"knee pain right", "arthralgia right knee"},
		},
		{
			Code:     "M25.562",
			Title:    "Pain in left knee",
			Includes: []string{"Left knee pain"},
			Excludes: []string{"Pain in right knee (M25.561)"},
			Synonyms: []string{"knee pain left", "arthralgia left knee"},
		},
		{
			Code:     "J10.1",
			Title:    "Influenza due to other identified influenza virus with other respiratory manifestations",
			Includes: []string{"Influenza with pneumonia"},
			Synonyms: []string{"flu with respiratory manifestations", "influenza pneumonia"},
		},
		{
			Code:     "M54.5",
			Title:    "Low back pain",
			Includes: []string{"Lumbago"},
			Synonyms: []string{"back pain", "lower back pain"},
		},
		{
			Code:     "R07.9",
			Title:    "Chest pain, unspecified",
			Includes: []string{"Chest pain NOS"},
			Synonyms: []string{"chest discomfort", "unspecified chest pain"},
		},
	}
}

// =========== Shipped Modifier Table ===========

func defaultModifiers() []*coding.ModifierEntry {
	return []*coding.ModifierEntry{
		{
			Code:   "25",
			Title:  "Significant, separately identifiable evaluation and management service on the same day of the procedure",
			Reason: "Use when a separately documented E/M service is performed on the same day as another procedure.",
		},
		{
			Code:   "59",
			Title:  "Distinct procedural service",
			Reason: "Indicates a procedure or service was distinct or independent from other services performed on the same day.",
		},
		{
			Code:   "50",
			Title:  "Bilateral procedure",
			Reason: "Used when the same procedure is performed on both sides of the body during the same session.",
		},
		{
			Code:   "LT",
			Title:  "Left side",
			Reason: "Procedures performed on the left side of the body.",
		},
		{
			Code:   "RT",
			Title:  "Right side",
			Reason: "Procedures performed on the right side of the body.",
		},
		{
			Code:   "76",
			Title:  "Repeat procedure or service by same physician",
			Reason: "Indicates a repeat procedure by the same physician.",
		},
		{
			Code:   "77",
			Title:  "Repeat procedure by another physician",
			Reason: "Indicates a repeat procedure by a different physician.",
		},
		{
			Code:   "26",
			Title:  "Professional component",
			Reason: "Used when only the professional component of a service is being billed (e.g., interpretation of radiologic studies).",
		},
		{
			Code:   "TC",
			Title:  "Technical component",
			Reason: "Used when only the technical component of a service is being billed (e.g., use of equipment).",
		},
	}
}

// =========== Shipped NCCI Pair Table ===========

func defaultPairEdits() []*coding.PairEdit {
	return []*coding.PairEdit{
		{
			CPTA:             "11719",
			CPTB:             "11720",
			Status:           coding.PairStatusDenied,
			Message:          "CPT 11719 is bundled into 11720; they should not be billed together without appropriate modifier.",
			ModifierRequired: true,
		},
		{
			CPTA:             "17000",
			CPTB:             "17110",
			Status:           coding.PairStatusAllowed,
			Message:          "CPT 17000 and 17110 may be reported together with modifier 59 if lesions are separate/distinct sites.",
			ModifierRequired: true,
		},
		{
			CPTA:             "71045",
			CPTB:             "71046",
			Status:           coding.PairStatusAllowed,
			Message:          "Two different chest X-ray views are generally allowed together.",
			ModifierRequired: false,
		},
	}
}
