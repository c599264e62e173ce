package kg

// NodeType is one of the closed set of entity kinds the graph accepts.
// Each type has exactly one biolink category used on export.
type NodeType string

const (
	Microbe           NodeType = "Microbe"
	Pathway           NodeType = "Pathway"
	KO                NodeType = "KO"
	Network           NodeType = "Network"
	Disease           NodeType = "Disease"
	Drug              NodeType = "Drug"
	DrugGroup         NodeType = "Drug_Group"
	Module            NodeType = "Module"
	Compound          NodeType = "Compound"
	Enzyme            NodeType = "Enzyme"
	Glycan            NodeType = "Glycan"
	Reaction          NodeType = "Reaction"
	PhenotypicFeature NodeType = "Phenotypic_Feature"
	AMR               NodeType = "AMR"
)

var supportedNodeTypes = []NodeType{
	Microbe, Pathway, KO, Network, Disease, Drug, DrugGroup,
	Module, Compound, Enzyme, Glycan, Reaction, PhenotypicFeature, AMR,
}

var categories = map[NodeType]string{
	Microbe:           "biolink:OrganismTaxon",
	Pathway:           "biolink:Pathway",
	KO:                "biolink:BiologicalEntity",
	Network:           "biolink:NamedThing",
	Disease:           "biolink:Disease",
	Drug:              "biolink:Drug",
	DrugGroup:         "biolink:MolecularMixture",
	Module:            "biolink:BiologicalProcess",
	Compound:          "biolink:MolecularEntity",
	Enzyme:            "biolink:Polypeptide",
	Glycan:            "biolink:MacromolecularComplex",
	Reaction:          "biolink:MolecularActivity",
	PhenotypicFeature: "biolink:PhenotypicFeature",
	AMR:               "biolink:Protein",
}

var typesByCategory = func() map[string]NodeType {
	m := make(map[string]NodeType, len(categories))
	for t, c := range categories {
		m[c] = t
	}
	return m
}()

// SupportedNodeTypes lists every accepted type in canonical order.
func SupportedNodeTypes() []NodeType {
	return append([]NodeType(nil), supportedNodeTypes...)
}

// Valid reports whether t is in the supported set.
func (t NodeType) Valid() bool {
	_, ok := categories[t]
	return ok
}

// Category returns the biolink category, or "" for unsupported types.
func (t NodeType) Category() string {
	return categories[t]
}

func (t NodeType) String() string {
	return string(t)
}

// ParseNodeType accepts a type name ("Microbe") or its biolink category
// ("biolink:OrganismTaxon"). Unknown strings are returned as-is with ok=false
// so callers can still report what they saw.
func ParseNodeType(s string) (NodeType, bool) {
	if t := NodeType(s); t.Valid() {
		return t, true
	}
	if t, ok := typesByCategory[s]; ok {
		return t, true
	}
	return NodeType(s), false
}
