package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"devpi-cleaner/internal/core"
	"devpi-cleaner/internal/types"
)

const confirmPrompt = "Are you sure (yes/no)? "

// Clean lists the matching packages, shows what would go, asks for
// confirmation unless Batch is set and then removes index by index.
// Declining the prompt is not an error.
func (s Service) Clean(ctx context.Context, req CleanRequest) (CleanResult, error) {
	start := timeNow(s.Clock)
	scheme, err := core.ParseVersionScheme(req.VersionScheme)
	if err != nil {
		return CleanResult{}, err
	}
	client, cleanup, err := s.connect(ctx, req.Connection)
	if err != nil {
		return CleanResult{}, err
	}
	defer cleanup()

	listing, err := ListPackagesByIndex(ctx, client, req.IndexSpec, req.PackageSpec, req.Filter)
	if err != nil {
		return CleanResult{}, err
	}
	policy := types.RemovalPolicy{VersionsToKeep: req.VersionsToKeep, Scheme: scheme}
	result := CleanResult{DryRun: req.DryRun}
	for _, index := range listing.Indices() {
		packages := listing[index].Slice()
		if len(packages) == 0 {
			continue
		}
		plan, err := core.PlanRemoval(index, packages, policy)
		if err != nil {
			return CleanResult{}, err
		}
		result.Plans = append(result.Plans, plan)
		result.DeleteCount += len(plan.Delete)
		result.KeepCount += len(plan.Keep)
	}
	logger := log.Ctx(ctx)
	if result.DeleteCount == 0 {
		logger.Info().Str("spec", req.PackageSpec).Msg("no packages to remove")
		return result, nil
	}
	if err := printPlans(s.out(), result.Plans); err != nil {
		return CleanResult{}, err
	}
	if req.DryRun {
		return result, nil
	}
	if !req.Batch {
		confirmed, err := confirm(ctx, s.in(), s.out())
		if err != nil {
			return CleanResult{}, err
		}
		if !confirmed {
			logger.Info().Msg("removal declined")
			result.Declined = true
			return result, nil
		}
	}

	for _, plan := range result.Plans {
		if len(plan.Delete) == 0 {
			continue
		}
		if _, err := RemovePackagesWithPolicy(ctx, client, plan.Index, listing[plan.Index].Slice(), req.Force, policy); err != nil {
			return result, err
		}
	}
	result.DurationSecs = timeNow(s.Clock).Sub(start).Seconds()
	logger.Info().
		Int("deleted", result.DeleteCount).
		Int("kept", result.KeepCount).
		Float64("seconds", result.DurationSecs).
		Msg("clean finished")
	return result, nil
}

func printPlans(out io.Writer, plans []types.RemovalPlan) error {
	for _, plan := range plans {
		if len(plan.Delete) == 0 {
			continue
		}
		if err := writeSection(out, "Packages to be deleted from "+plan.Index, plan.Delete); err != nil {
			return err
		}
		if err := writeSection(out, "Packages kept on "+plan.Index, plan.Keep); err != nil {
			return err
		}
	}
	return nil
}

func writeSection(out io.Writer, title string, packages []types.PackageIdentity) error {
	if len(packages) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(out, "%s:\n", title); err != nil {
		return outputError(err)
	}
	for _, pkg := range packages {
		if _, err := fmt.Fprintf(out, " * %s\n", pkg); err != nil {
			return outputError(err)
		}
	}
	return nil
}

// confirm asks until the answer is yes or no. End of input declines and
// cancelling ctx abandons the prompt.
func confirm(ctx context.Context, in io.Reader, out io.Writer) (bool, error) {
	type answer struct {
		confirmed bool
		err       error
	}
	answers := make(chan answer, 1)
	go func() {
		confirmed, err := ask(in, out)
		answers <- answer{confirmed: confirmed, err: err}
	}()
	select {
	case a := <-answers:
		return a.confirmed, a.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func ask(in io.Reader, out io.Writer) (bool, error) {
	reader := bufio.NewReader(in)
	for {
		if _, err := fmt.Fprint(out, confirmPrompt); err != nil {
			return false, outputError(err)
		}
		line, err := reader.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "yes", "y":
			return true, nil
		case "no", "n":
			return false, nil
		}
		if err != nil {
			return false, nil
		}
	}
}

func outputError(err error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("failed to write output").
		WithCause(err)
}
