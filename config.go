/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

// Library types of the sequencing protocol
const (
	Unstranded = iota
	FrFirst
	FrSecond
)

// Config collects every recognized option of the assembler. Zero values are
// not meaningful; construct with DefaultConfig and override from the CLI.
type Config struct {
	// input and output
	InputFile  string
	VcfFile    string
	FastaInput string
	OutputFile string

	// bundle formation
	MinBundleGap       int32
	MinNumHitsInBundle int
	BatchBundleSize    int

	// hit filters
	MinMappingQuality  int
	MaxNumCigar        int
	UniquelyMappedOnly bool
	UseSecondAlignment bool
	LibraryType        int

	// graph construction and refinement
	MinSpliceBoundaryHits          int
	MinExonLength                  int32
	MinFlankLength                 int32
	MinGuaranteedEdgeWeight        float64
	MinSurvivingEdgeWeight         float64
	MinRouterCount                 int
	MaxIntronContaminationCoverage float64
	MaxNumExons                    int

	// fragments and phasing
	MajorGtThreshold float64
	InsertsizeLow    int32
	InsertsizeHigh   int32

	// driver behavior
	AssembleDuplicates int
	PreviewOnly        bool
	Verbose            int

	// default-off switches; the two transcript filters are kept as no-ops
	FilterLengthCoverage    bool
	RemoveNestedTranscripts bool
	DecomposeAsNeighbor     bool
}

// DefaultConfig returns the default parameter set
func DefaultConfig() *Config {
	return &Config{
		MinBundleGap:                   50,
		MinNumHitsInBundle:             20,
		BatchBundleSize:                100,
		MinMappingQuality:              1,
		MaxNumCigar:                    1000,
		LibraryType:                    Unstranded,
		MinSpliceBoundaryHits:          1,
		MinExonLength:                  20,
		MinFlankLength:                 3,
		MinGuaranteedEdgeWeight:        0.01,
		MinSurvivingEdgeWeight:         1.5,
		MinRouterCount:                 1,
		MaxIntronContaminationCoverage: 2.0,
		MaxNumExons:                    1000,
		MajorGtThreshold:               0.8,
		InsertsizeLow:                  80,
		InsertsizeHigh:                 500,
		AssembleDuplicates:             1,
		Verbose:                        1,
	}
}
