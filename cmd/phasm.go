/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package main

import (
	"log"
	"os"

	logging "github.com/op/go-logging"
	"github.com/rnaphase/phasm"
	"github.com/urfave/cli"
)

// main is the entrypoint for the entire program, routes to commands
func main() {
	logging.SetBackend(phasm.BackendFormatter)

	app := cli.NewApp()
	app.Name = "phasm"
	app.Usage = "Allele-specific transcript assembly from RNA-seq"
	app.Version = phasm.Version

	assembleFlags := []cli.Flag{
		cli.StringFlag{
			Name:  "vcf",
			Usage: "Phased VCF with heterozygous variants",
		},
		cli.StringFlag{
			Name:  "fasta",
			Usage: "Reference FASTA for transcript sequence output",
		},
		cli.StringFlag{
			Name:  "output, o",
			Usage: "Output prefix",
			Value: "phasm",
		},
		cli.StringFlag{
			Name:  "library",
			Usage: "Library type: unstranded, first, second",
			Value: "unstranded",
		},
		cli.IntFlag{
			Name:  "min-bundle-gap",
			Usage: "Maximum gap between reads of one bundle",
			Value: 50,
		},
		cli.IntFlag{
			Name:  "min-mapping-quality",
			Usage: "Minimum mapping quality of a used alignment",
			Value: 1,
		},
		cli.IntFlag{
			Name:  "min-num-hits-in-bundle",
			Usage: "Minimum number of reads for a bundle to be assembled",
			Value: 20,
		},
		cli.IntFlag{
			Name:  "min-splice-boundary-hits",
			Usage: "Minimum read support of a junction",
			Value: 1,
		},
		cli.IntFlag{
			Name:  "min-exon-length",
			Usage: "Minimum length of a boundary exon",
			Value: 20,
		},
		cli.Float64Flag{
			Name:  "major-gt-threshold",
			Usage: "Majority fraction for a fragment's genotype call",
			Value: 0.8,
		},
		cli.BoolFlag{
			Name:  "unique-only",
			Usage: "Use uniquely mapped reads only (NH == 1)",
		},
		cli.BoolFlag{
			Name:  "use-second-alignment",
			Usage: "Keep secondary alignments",
		},
		cli.BoolFlag{
			Name:  "preview-only",
			Usage: "Stop after previewing library type and insert size",
		},
		cli.IntFlag{
			Name:  "verbose",
			Usage: "Verbosity level",
			Value: 1,
		},
	}

	app.Commands = []cli.Command{
		{
			Name:  "assemble",
			Usage: "Assemble allele-specific transcripts from a BAM file",
			UsageText: `
	phasm assemble bamfile [options]

Assemble function:
Given a coordinate-sorted BAM file, reconstruct the set of expressed
transcripts per parental allele. A phased VCF turns on allele-specific
assembly: variant loci split the splice graph into parallel allelic
vertices and the phaser partitions edge weights between the two
haplotypes before decomposition.
`,
			Flags: assembleFlags,
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowSubcommandHelp(c)
					return cli.NewExitError("Must specify bamfile", 1)
				}

				cfg := phasm.DefaultConfig()
				cfg.InputFile = c.Args().Get(0)
				cfg.VcfFile = c.String("vcf")
				cfg.FastaInput = c.String("fasta")
				cfg.OutputFile = c.String("output")
				cfg.MinBundleGap = int32(c.Int("min-bundle-gap"))
				cfg.MinMappingQuality = c.Int("min-mapping-quality")
				cfg.MinNumHitsInBundle = c.Int("min-num-hits-in-bundle")
				cfg.MinSpliceBoundaryHits = c.Int("min-splice-boundary-hits")
				cfg.MinExonLength = int32(c.Int("min-exon-length"))
				cfg.MajorGtThreshold = c.Float64("major-gt-threshold")
				cfg.UniquelyMappedOnly = c.Bool("unique-only")
				cfg.UseSecondAlignment = c.Bool("use-second-alignment")
				cfg.PreviewOnly = c.Bool("preview-only")
				cfg.Verbose = c.Int("verbose")

				switch c.String("library") {
				case "first":
					cfg.LibraryType = phasm.FrFirst
				case "second":
					cfg.LibraryType = phasm.FrSecond
				default:
					cfg.LibraryType = phasm.Unstranded
				}

				pv := phasm.NewPreviewer(cfg)
				pv.Preview()
				if cfg.PreviewOnly {
					return nil
				}

				asmb := phasm.NewAssembler(cfg)
				asmb.Assemble()
				return nil
			},
		},
		{
			Name:  "preview",
			Usage: "Infer library type and insert sizes without assembling",
			UsageText: `
	phasm preview bamfile

Preview function:
Sample the head of the BAM file to report the inferred library type and
the empirical insert-size window.
`,
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowSubcommandHelp(c)
					return cli.NewExitError("Must specify bamfile", 1)
				}
				cfg := phasm.DefaultConfig()
				cfg.InputFile = c.Args().Get(0)
				pv := phasm.NewPreviewer(cfg)
				pv.Preview()
				return nil
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
