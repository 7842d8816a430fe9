package domains

import (
	"strings"
	"testing"
)

const tenKHead = `UNITED STATES SECURITIES AND EXCHANGE COMMISSION
Washington, D.C. 20549
Form 10-K

ANNUAL REPORT PURSUANT TO SECTION 13 OR 15(d)

Item 7. MANAGEMENT'S DISCUSSION AND ANALYSIS

Consolidated Statements of Operations for fiscal year 2024.
Net sales increased 8% year over year. Diluted earnings per share were $6.13.`

const contractHead = `MASTER SERVICES AGREEMENT

This AGREEMENT is entered into as of January 1, 2024 (the "Effective Date").

WHEREAS, the parties desire to set forth the terms of their engagement;

NOW, THEREFORE, in consideration of the mutual covenants herein, the parties
hereby agree as follows:

Section 1.1 Definitions. The governing law of this Agreement is Delaware law.`

func TestDetectFinance(t *testing.T) {
	score := Finance.Detect(tenKHead, "apple_10k.pdf")
	if score < 0.8 {
		t.Errorf("Finance.Detect() = %v, want >= 0.8", score)
	}
	if legal := Legal.Detect(tenKHead, "apple_10k.pdf"); legal >= score {
		t.Errorf("Legal score %v not below finance score %v", legal, score)
	}
}

func TestDetectFilenameBoost(t *testing.T) {
	plain := Finance.Detect("nothing financial here", "notes.txt")
	boosted := Finance.Detect("nothing financial here", "q3_earnings.pdf")
	if boosted-plain < 0.29 {
		t.Errorf("filename boost = %v, want ~0.3", boosted-plain)
	}
}

func TestRegistryDetect(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		filename string
		want     string
	}{
		{"sec filing", tenKHead, "apple_10k.pdf", "finance"},
		{"contract", contractHead, "msa.docx", "legal"},
	}
	r := NewRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := r.Detect(tt.text, tt.filename)
			if d == nil {
				t.Fatal("Detect() = nil, want a domain")
			}
			if d.Name != tt.want {
				t.Errorf("Detect() = %q, want %q", d.Name, tt.want)
			}
		})
	}
}

func TestDetectMultiThreshold(t *testing.T) {
	r := NewRegistry()
	scores := r.DetectMulti(tenKHead, "", 0.3)
	for _, s := range scores {
		if s.Confidence < 0.3 {
			t.Errorf("score %v for %q below threshold", s.Confidence, s.Domain.Name)
		}
	}
	for i := 1; i < len(scores); i++ {
		if scores[i].Confidence > scores[i-1].Confidence {
			t.Error("DetectMulti() not sorted highest first")
		}
	}
}

func TestSynonymRegex(t *testing.T) {
	re := Finance.SynonymRegex("net_income")
	if !strings.Contains(re, "net income|") {
		t.Errorf("SynonymRegex() = %q, missing net income", re)
	}
	if strings.Contains(re, "(loss)") {
		t.Errorf("SynonymRegex() = %q, parentheses not escaped", re)
	}
	if got := Finance.SynonymRegex("unknown_concept"); got != "unknown_concept" {
		t.Errorf("SynonymRegex(unknown) = %q, want identity", got)
	}
}

func TestQueryTemplate(t *testing.T) {
	q := Finance.Query("revenue")
	if q == "" {
		t.Fatal("Query(revenue) empty")
	}
	if strings.Contains(q, "{synonyms}") {
		t.Errorf("Query(revenue) left placeholder unexpanded: %q", q)
	}
	if !strings.Contains(q, "net sales") {
		t.Errorf("Query(revenue) missing synonym expansion: %q", q)
	}
	if Finance.Query("no_such_template") != "" {
		t.Error("Query(missing) should be empty")
	}
}

func TestComposeSynonyms(t *testing.T) {
	merged := ComposeSynonyms([]*Domain{Finance, Medical})
	if len(merged["revenue"]) != len(Finance.Synonyms["revenue"]) {
		t.Error("finance synonyms lost in merge")
	}
	if len(merged["diagnosis"]) != len(Medical.Synonyms["diagnosis"]) {
		t.Error("medical synonyms lost in merge")
	}

	a := &Domain{Name: "a", Synonyms: map[string][]string{"x": {"one", "two"}}}
	b := &Domain{Name: "b", Synonyms: map[string][]string{"x": {"two", "three"}}}
	got := ComposeSynonyms([]*Domain{a, b})["x"]
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("merged x = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("merged x = %v, want %v", got, want)
			break
		}
	}
}

func TestDocType(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"academic", "Abstract\nThis paper...\nIntroduction\nPrior work...", "academic paper"},
		{"html", "<!DOCTYPE html><html><body>hi</body></html>", "HTML document"},
		{"json", `{"key": "value"}`, "JSON data"},
		{"markdown table", "| a | b |\n|-|-|\n| 1 | 2 |", "markdown with tables"},
		{"financial", "Revenue grew in Q3 of the fiscal year.", "financial document"},
		{"code", "import os\ndef main():\n    pass", "code/technical document"},
		{"plain", "Dear diary, today it rained.", "general text document"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DocType(tt.text); got != tt.want {
				t.Errorf("DocType() = %q, want %q", got, tt.want)
			}
		})
	}
}
