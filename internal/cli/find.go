package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lemmego/criteria"
)

// FindOptions holds the flags of the find command.
type FindOptions struct {
	Name   string
	MaxAge int
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FindOptions{}

	cmd := &cobra.Command{
		Use:   "find",
		Short: "Find people by name who are not older than --max-age",
		Long: `Seeds three people into the selected engine and runs

    and(nameEquals(--name), not(ageGreaterThan(--max-age)))

printing the matches ordered by id.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "Ann", "name to match")
	cmd.Flags().IntVar(&opts.MaxAge, "max-age", 30, "upper age bound, inclusive")

	return cmd
}

func runFind(cmd *cobra.Command, rootOpts *RootOptions, opts *FindOptions) error {
	ctx := cmd.Context()

	cfg, logger, err := rootOpts.load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	repo, provider, err := openEngine(ctx, rootOpts.Engine, cfg, logger)
	if err != nil {
		return err
	}
	if provider != nil {
		providers := criteria.NewProviderRegistry()
		providers.RegisterDefault(provider)
		defer providers.RemoveAll()
	}

	if err := repo.Save(ctx, seed()...); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	c := criteria.AllOf(NameEquals.Of(opts.Name), criteria.Not(AgeGreaterThan.Of(opts.MaxAge)))
	people, err := repo.Find(ctx, c, criteria.OrderBy("id", criteria.OrderAsc))
	if err != nil {
		return err
	}
	logger.Info("find finished",
		zap.String("engine", rootOpts.Engine),
		zap.String("criteria", criteria.String(c)),
		zap.Int("matches", len(people)))

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tAGE")
	for _, p := range people {
		fmt.Fprintf(w, "%s\t%s\t%d\n", p.ID, p.Name, p.Age)
	}
	return w.Flush()
}
