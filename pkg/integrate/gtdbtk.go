package integrate

import (
	"strconv"

	"github.com/dd0wney/microbekg/pkg/kg"
	"github.com/dd0wney/microbekg/pkg/tsv"
)

// gtdbAssignment is one row of a GTDB-Tk summary. target is the synonym the
// genome merges under: its fastANI reference when close enough, otherwise
// the genome's own source synonym.
type gtdbAssignment struct {
	target         string
	classification string
	info           []kg.Attribute
	hasANI         bool
}

var gtdbtkColumns = []string{"user_genome", "classification", "fastani_reference", "fastani_reference_radius",
	"fastani_ani", "fastani_af", "classification_method", "msa_percent"}

// readGTDBAssignments indexes a GTDB-Tk summary by user genome. self maps a
// user genome to the synonym it keeps when the fastANI comparison is
// missing or below either threshold.
func readGTDBAssignments(path string, self func(string) string, aniThreshold, afThreshold float64) (map[string]*gtdbAssignment, error) {
	out := map[string]*gtdbAssignment{}
	err := eachRow(path, gtdbtkColumns, func(r *tsv.Reader, row []string) {
		genome := r.Field(row, "user_genome")
		ani := r.Field(row, "fastani_ani")
		af := r.Field(row, "fastani_af")

		a := &gtdbAssignment{
			target:         self(genome),
			classification: r.Field(row, "classification"),
			hasANI:         ani != "N/A",
			info: []kg.Attribute{
				kg.Attr("ANI_reference_radius", r.Field(row, "fastani_reference_radius")),
				kg.Attr("ANI", ani),
				kg.Attr("AF", af),
				kg.Attr("classification_method", r.Field(row, "classification_method")),
				kg.Attr("MSA_percent", r.Field(row, "msa_percent")),
			},
		}
		if meetsThreshold(ani, aniThreshold) && meetsThreshold(af, afThreshold) {
			a.target = "GTDB:" + r.Field(row, "fastani_reference")
		}
		out[genome] = a
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func meetsThreshold(value string, threshold float64) bool {
	if value == "N/A" {
		return false
	}
	f, err := strconv.ParseFloat(value, 64)
	return err == nil && f >= threshold
}
