package dedup

import (
	"fmt"
	"io"
	"strings"
)

// PrintReport writes the per-cluster and aggregate summary of a detection run
func PrintReport(w io.Writer, result Result) {
	fmt.Fprintf(w, "Scanned %d facilities\n", result.Scanned)
	if len(result.Clusters) == 0 {
		fmt.Fprintln(w, "No duplicates found.")
		return
	}

	byReason := map[Reason]int{}
	for i, c := range result.Clusters {
		byReason[c.Reason]++

		fmt.Fprintf(w, "\n[%d] %s (%d rows)\n", i+1, c.Reason.Label(), len(c.Members))
		for _, m := range c.Members {
			marker := "delete"
			if m.ID == c.KeepID {
				marker = "KEEP  "
			}
			fmt.Fprintf(w, "    %s %s  %s  %s  created %s\n",
				marker, m.ID, m.Name, m.Address, m.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		for _, lf := range c.LostFields {
			fmt.Fprintf(w, "    ! %s on %s would be lost: %s\n", lf.Field, lf.FacilityID, lf.Value)
		}
	}

	fmt.Fprintln(w, "\n"+strings.Repeat("-", 60))
	fmt.Fprintf(w, "Clusters: %d (%s: %d, %s: %d)\n", len(result.Clusters),
		ReasonExactLocation.Label(), byReason[ReasonExactLocation],
		ReasonNameAddress.Label(), byReason[ReasonNameAddress])
	fmt.Fprintf(w, "Rows to delete: %d\n", len(result.DeleteIDs))
}

// PrintExecution writes the outcome of a deletion run
func PrintExecution(w io.Writer, res *ExecutionResult) {
	if res == nil {
		return
	}
	if res.DryRun {
		fmt.Fprintln(w, "Dry run: nothing was deleted. Re-run with --execute to delete.")
		return
	}
	fmt.Fprintf(w, "Deleted %d of %d (failed: %d)\n", res.Succeeded, res.Attempted, res.Failed)
	for _, id := range res.FailedIDs {
		fmt.Fprintf(w, "    failed: %s\n", id)
	}
}

// PrintNearby writes the nearby pair report
func PrintNearby(w io.Writer, pairs []NearbyPair, radiusMeters float64) {
	fmt.Fprintf(w, "Pairs within %.0fm: %d\n", radiusMeters, len(pairs))
	same := 0
	for _, p := range pairs {
		flag := " "
		if p.SameName {
			flag = "*"
			same++
		}
		fmt.Fprintf(w, "%s %6.1fm  %s (%s)  <->  %s (%s)\n",
			flag, p.DistanceMeters, p.A.Name, p.A.ID, p.B.Name, p.B.ID)
	}
	if len(pairs) > 0 {
		fmt.Fprintf(w, "Pairs with matching names (*): %d\n", same)
	}
}
