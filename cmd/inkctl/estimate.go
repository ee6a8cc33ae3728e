package main

import (
	"fmt"

	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/estimate"
	"github.com/spf13/cobra"
)

func newEstimateCmd() *cobra.Command {
	var (
		cfg    domain.GenerationConfig
		length string
		titles int
	)

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Preview the credits a job would reserve",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Length = domain.Length(length)
			cfg = cfg.WithDefaults()
			if err := cfg.Validate(); err != nil {
				return err
			}
			if titles <= 0 || titles > domain.MaxBulkTitles {
				return fmt.Errorf("titles must be between 1 and %d", domain.MaxBulkTitles)
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "per title %d\ntotal %d\n",
				estimate.Estimate(cfg), estimate.EstimateBulk(cfg, titles))
			return err
		},
	}

	cmd.Flags().StringVar(&length, "length", string(domain.LengthMedium), "Article length: short, medium or long")
	cmd.Flags().IntVar(&cfg.Images, "images", 0, "Images per article")
	cmd.Flags().IntVar(&cfg.KeyTakeaways, "takeaways", 0, "Key takeaways per article")
	cmd.Flags().IntVar(&cfg.FAQs, "faqs", 0, "FAQ entries per article")
	cmd.Flags().IntVar(&titles, "titles", 1, "Number of titles in the job")
	return cmd
}
