package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	legalrag "github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph"
)

var (
	askTopK       int
	askNoRephrase bool
	askJSON       bool

	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one legal question",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Probe the graph store, the vector index and the model",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}

	seedCmd = &cobra.Command{
		Use:   "seed [fixture.yaml]",
		Short: "Load instruments, provisions, cases and citations, then index their texts",
		Args:  cobra.ExactArgs(1),
		RunE:  runSeed,
	}
)

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "chunks to retrieve (0 uses the configured value)")
	askCmd.Flags().BoolVar(&askNoRephrase, "no-rephrase", false, "search with the question as typed")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full request state as JSON")
}

func runAsk(cmd *cobra.Command, args []string) error {
	e, _, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	var opts []legalrag.AskOption
	if askTopK > 0 {
		opts = append(opts, legalrag.WithTopK(askTopK))
	}
	if askNoRephrase {
		opts = append(opts, legalrag.WithoutRephrase())
	}
	ans, err := e.Ask(cmd.Context(), strings.Join(args, " "), opts...)
	if err != nil {
		return err
	}
	if askJSON {
		return printJSON(cmd.OutOrStdout(), ans)
	}
	printAnswer(cmd.OutOrStdout(), ans)
	return nil
}

func printAnswer(w io.Writer, ans *legalrag.Answer) {
	fmt.Fprintln(w, ans.Answer)

	refs := ans.References
	if len(refs.Acts)+len(refs.Articles)+len(refs.Sections)+len(refs.Cases) > 0 {
		fmt.Fprintln(w, "\nReferences")
	}
	for _, a := range refs.Acts {
		fmt.Fprintf(w, "  act      %s\n", a.DisplayName())
	}
	for _, p := range refs.Articles {
		fmt.Fprintf(w, "  article  %s\n", p.ID)
	}
	for _, p := range refs.Sections {
		fmt.Fprintf(w, "  section  %s\n", p.ID)
	}
	for _, c := range refs.Cases {
		if c.Year > 0 {
			fmt.Fprintf(w, "  case     %s (%d)\n", c.ID, c.Year)
		} else {
			fmt.Fprintf(w, "  case     %s\n", c.ID)
		}
	}
	if err := ans.Err(); err != nil {
		fmt.Fprintf(w, "\nDegraded: %v\n", err)
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	e, _, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	st := e.Status(cmd.Context())
	if err := printJSON(cmd.OutOrStdout(), st); err != nil {
		return err
	}
	if !st.Healthy() {
		return fmt.Errorf("one or more components are unavailable")
	}
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	f, err := legalrag.LoadFixture(args[0])
	if err != nil {
		return err
	}
	e, _, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	rep, err := e.Seed(cmd.Context(), f)
	if rep != nil {
		fmt.Fprintf(cmd.OutOrStdout(),
			"seeded %d instruments, %d provisions, %d cases, %d citations; %d chunks (%d embedded, %d failed) in %s\n",
			rep.Instruments, rep.Provisions, rep.Cases, rep.Citations,
			rep.Chunks, rep.Embedded, rep.Failed, rep.Elapsed.Round(time.Millisecond))
	}
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
