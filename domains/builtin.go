package domains

// Built-in domains. Synonym groups cover the terms documents in each family
// actually use; detection patterns are content signatures scored against the
// head of the document.

// Finance covers SEC filings, annual reports, and financial statements.
var Finance = &Domain{
	Name:        "finance",
	Description: "Financial document analysis (SEC filings, annual reports, financial statements)",
	Synonyms: map[string][]string{
		"revenue": {
			"revenue", "net revenue", "net sales", "sales revenue",
			"total net revenue", "gross revenue", "operating revenue",
			"total sales", "net revenues", "revenues",
			"product revenue", "service revenue",
		},
		"expenses": {
			"total expenses", "operating expenses", "cost of revenue",
			"cost of sales", "COGS", "cost of goods sold",
			"selling general and administrative", "SG&A",
			"operating costs", "total operating expenses",
			"research and development", "R&D expense",
		},
		"net_income": {
			"net income", "net earnings", "net profit", "net loss",
			"net income attributable", "income from continuing operations",
			"profit after tax", "net income (loss)", "earnings (loss)",
		},
		"assets": {
			"total assets", "current assets", "total current assets",
			"noncurrent assets", "long-term assets",
			"property plant and equipment", "PP&E",
		},
		"liabilities": {
			"total liabilities", "current liabilities", "long-term debt",
			"total debt", "noncurrent liabilities",
			"total current liabilities", "accounts payable",
		},
		"cash_flow": {
			"cash from operations", "operating cash flow", "net cash provided",
			"cash flow from operating activities", "free cash flow", "FCF",
			"capital expenditures", "capex",
		},
		"eps": {
			"earnings per share", "EPS", "basic EPS", "diluted EPS",
			"basic earnings per share", "diluted earnings per share",
			"net income per share", "net loss per share",
		},
		"gross_profit": {
			"gross profit", "gross margin", "gross income",
			"total gross profit", "contribution margin",
		},
		"operating_income": {
			"operating income", "income from operations",
			"operating profit", "operating loss", "operating income (loss)",
		},
	},
	Patterns: []string{
		`Form\s+10-[KQ]`,
		`UNITED STATES SECURITIES AND EXCHANGE COMMISSION`,
		`Consolidated\s+(Balance\s+Sheet|Statement|Income)`,
		`FINANCIAL\s+STATEMENTS`,
		`Item\s+[178][A-Z]?\.`,
		`MANAGEMENT.S\s+DISCUSSION`,
		`EBITDA|earnings\s+per\s+share`,
		`fiscal\s+year|FY\s*\d{4}`,
	},
	QueryTemplates: map[string]string{
		"revenue": "What is the total revenue for each reported period? " +
			"The document may use any of these terms: {synonyms}. " +
			"Report the exact figure, the term used, and the source line.",
		"expenses": "What are the major expense categories and their amounts? " +
			"Look for: {synonyms}. List each category with its amount and the reporting period.",
		"net_income": "What is the net income for each reported period? " +
			"The document may label this as: {synonyms}. " +
			"Report the exact figure and any year-over-year change.",
		"risk_factors": "What are the key risk factors mentioned in this document? " +
			"Summarize the top 5 most significant risks with brief descriptions.",
		"cash_flow": "What is the cash flow from operations for each period? " +
			"Look for: {synonyms}. Report the exact figures.",
		"eps": "What are the basic and diluted earnings per share? " +
			"Look for: {synonyms}. Report for each period available.",
	},
	FilenameKeywords: []string{
		"10-k", "10k", "10-q", "10q", "annual", "quarterly",
		"financial", "earnings", "sec", "filing", "proxy", "8-k",
	},
}

// Legal covers contracts, litigation filings, and corporate governance.
var Legal = &Domain{
	Name:        "legal",
	Description: "Legal document analysis (contracts, litigation, IP, corporate governance)",
	Synonyms: map[string][]string{
		"party": {
			"party", "parties", "plaintiff", "defendant",
			"claimant", "respondent", "petitioner", "appellant",
			"counterparty", "contracting party",
			"licensor", "licensee", "lessor", "lessee",
			"employer", "employee", "assignor", "assignee",
			"indemnitor", "indemnitee",
		},
		"obligation": {
			"shall", "must", "agrees to", "is obligated to",
			"covenant", "undertakes", "warrants", "represents",
			"is required to", "obligation", "shall comply",
		},
		"termination": {
			"termination", "cancellation", "expiration",
			"rescission", "revocation", "end of term",
			"termination for cause", "termination for convenience",
			"early termination", "non-renewal", "material breach",
		},
		"liability": {
			"liability", "indemnification", "indemnify",
			"hold harmless", "limitation of liability",
			"cap on liability", "consequential damages",
			"liquidated damages", "negligence", "gross negligence",
		},
		"confidentiality": {
			"confidential", "confidentiality", "non-disclosure",
			"NDA", "proprietary information", "trade secret",
			"confidential information", "privileged",
			"attorney-client privilege",
		},
		"compensation": {
			"compensation", "payment", "fee", "consideration",
			"price", "royalty", "milestone payment",
			"damages", "settlement", "judgment", "award",
		},
		"governing_law": {
			"governing law", "choice of law", "jurisdiction",
			"venue", "arbitration", "dispute resolution",
			"applicable law", "forum selection", "mediation",
		},
		"intellectual_property": {
			"intellectual property", "IP", "patent", "trademark",
			"copyright", "trade secret", "license grant",
			"infringement", "misappropriation", "prior art",
		},
	},
	Patterns: []string{
		`AGREEMENT`,
		`WHEREAS`,
		`IN WITNESS WHEREOF`,
		`NOW,?\s+THEREFORE`,
		`ARTICLE\s+[IVX]+`,
		`Section\s+\d+\.\d+`,
		`hereby\s+(?:agree|covenant|represent)`,
		`governing\s+law`,
		`(?:plaintiff|defendant|respondent)`,
		`indemnif(?:y|ication)`,
	},
	QueryTemplates: map[string]string{
		"parties": "Who are the parties to this agreement? " +
			"List each party with their role and any defined abbreviations.",
		"key_terms": "What are the key terms and conditions of this agreement? " +
			"Include: effective date, term length, renewal provisions.",
		"obligations": "What are the key obligations of each party? " +
			"Look for: {synonyms}. List obligations per party.",
		"termination": "What are the termination provisions? " +
			"Look for: {synonyms}. Include conditions, notice periods, and consequences.",
		"liability": "What are the liability and indemnification provisions? " +
			"Look for: {synonyms}. Include any caps or limitations.",
		"governing_law": "What is the governing law and dispute resolution mechanism? " +
			"Look for: {synonyms}.",
	},
	FilenameKeywords: []string{
		"contract", "agreement", "nda", "lease", "license",
		"amendment", "addendum", "legal", "msa",
		"complaint", "motion", "brief", "order", "judgment",
	},
}

// Medical covers clinical records, drug labels, and trial documents.
var Medical = &Domain{
	Name:        "medical",
	Description: "Medical document analysis (clinical records, pharma, clinical trials)",
	Synonyms: map[string][]string{
		"diagnosis": {
			"diagnosis", "diagnoses", "condition", "disorder",
			"disease", "pathology", "clinical finding", "impression",
			"assessment", "chief complaint", "differential diagnosis",
			"primary diagnosis", "comorbidity", "comorbidities",
		},
		"treatment": {
			"treatment", "therapy", "intervention", "procedure",
			"medication", "drug", "regimen", "protocol",
			"management", "treatment plan", "standard of care",
			"surgery", "chemotherapy", "immunotherapy",
		},
		"dosage": {
			"dosage", "dose", "mg", "milligrams", "units", "mcg",
			"daily dose", "maximum dose", "recommended dose",
			"route of administration", "oral", "IV", "intravenous",
			"subcutaneous", "PRN", "BID", "TID",
		},
		"adverse_effects": {
			"adverse effect", "adverse event", "side effect",
			"adverse reaction", "complication", "contraindication",
			"warning", "precaution", "black box warning",
			"drug interaction", "toxicity", "serious adverse event", "SAE",
		},
		"lab_results": {
			"lab result", "laboratory", "test result", "blood work",
			"CBC", "complete blood count", "metabolic panel",
			"hemoglobin", "A1C", "creatinine", "liver function",
			"pathology report", "biopsy",
		},
		"vital_signs": {
			"vital signs", "blood pressure", "BP", "heart rate",
			"pulse", "temperature", "respiratory rate",
			"oxygen saturation", "SpO2", "BMI",
		},
	},
	Patterns: []string{
		`PATIENT`,
		`DIAGNOSIS|DIAGNOSES`,
		`ICD-(?:10|11)`,
		`PRESCRIPTION|Rx`,
		`(?:chief|presenting)\s+complaint`,
		`(?:vital\s+signs|blood\s+pressure|heart\s+rate)`,
		`(?:medical|surgical|family)\s+history`,
		`DOSAGE\s+AND\s+ADMINISTRATION`,
		`(?:adverse|side)\s+(?:effect|event|reaction)`,
		`(?:INDICATIONS?\s+AND\s+USAGE|CONTRAINDICATIONS?)`,
		`clinical\s+trial|phase\s+(?:I{1,3}|[123])`,
	},
	QueryTemplates: map[string]string{
		"diagnoses": "What diagnoses or conditions are documented? " +
			"Look for: {synonyms}. List each diagnosis with any associated codes (ICD-10).",
		"medications": "What medications or treatments are prescribed or discussed? " +
			"Look for: {synonyms}. Include dosage, frequency, and route of administration.",
		"lab_results": "What laboratory results are reported? " +
			"Look for: {synonyms}. List each test with its value, units, and reference range if given.",
		"adverse_effects": "What adverse effects, complications, or warnings are mentioned? " +
			"Look for: {synonyms}. Include severity and frequency if available.",
		"vital_signs": "What vital signs are recorded? " +
			"Look for: {synonyms}. Report each measurement with its value and units.",
	},
	FilenameKeywords: []string{
		"patient", "clinical", "medical", "diagnosis",
		"prescription", "drug", "label", "guideline",
		"discharge", "progress", "operative", "trial", "protocol",
	},
}

// Academic covers papers, theses, and grant proposals.
var Academic = &Domain{
	Name:        "academic",
	Description: "Academic document analysis (papers, theses, grants, systematic reviews)",
	Synonyms: map[string][]string{
		"methodology": {
			"methodology", "methods", "method", "approach",
			"experimental setup", "experimental design",
			"study design", "research design", "procedure",
			"framework", "technique", "algorithm",
			"simulation", "numerical method",
		},
		"findings": {
			"findings", "results", "outcomes", "observations",
			"key findings", "main results", "experimental results",
			"empirical results", "quantitative results", "measurements",
		},
		"conclusion": {
			"conclusion", "conclusions", "summary", "discussion",
			"implications", "contribution", "takeaways",
			"concluding remarks", "future directions",
		},
		"limitations": {
			"limitation", "limitations", "constraint", "constraints",
			"shortcoming", "weakness", "future work",
			"open question", "caveat", "threats to validity",
			"generalizability", "selection bias", "confounding",
		},
		"hypothesis": {
			"hypothesis", "hypotheses", "research question",
			"conjecture", "proposition", "thesis statement",
		},
		"datasets": {
			"dataset", "datasets", "benchmark", "benchmarks",
			"corpus", "training data", "test set", "evaluation set",
			"sample", "cohort", "participants",
		},
	},
	Patterns: []string{
		`Abstract`,
		`Introduction`,
		`Related\s+Work`,
		`(?:Methodology|Methods|Experimental\s+Setup)`,
		`(?:Results|Findings|Experiments)`,
		`(?:Conclusion|Discussion)`,
		`References|Bibliography`,
		`arXiv:\d+\.\d+`,
		`(?:et\s+al\.|doi:|DOI:)`,
		`(?:Table|Figure)\s+\d+`,
	},
	QueryTemplates: map[string]string{
		"methodology": "What methodology or approach does this paper use? " +
			"Look for: {synonyms}. Describe the research design, data sources, and key techniques.",
		"findings": "What are the key findings or results? " +
			"Look for: {synonyms}. List the main quantitative and qualitative results.",
		"limitations": "What limitations or weaknesses does the paper acknowledge? " +
			"Look for: {synonyms}. Include any mentioned threats to validity.",
		"contributions": "What are the main contributions of this paper? " +
			"Look for claims of novelty, improvements over baselines, and practical implications.",
		"datasets": "What datasets or benchmarks were used for evaluation? " +
			"Look for: {synonyms}. Include size, source, and any preprocessing steps.",
	},
	FilenameKeywords: []string{
		"paper", "thesis", "dissertation", "report",
		"arxiv", "conference", "journal", "proceedings",
		"research", "study", "survey", "review",
	},
}
