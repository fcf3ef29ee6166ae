package evaluator

import (
	"fmt"
	"strings"

	"patron/internal/models"
)

// Programs above this size get a "substantial complexity" note
const largeProgramSize = 5000

// summarize renders the profile facts that hold, in a fixed order, followed by
// the total score. The summary is hashed into the grant's reason hash, so its
// format must stay stable.
func summarize(p models.Profile, total int) string {
	count := p.ProgramCount()
	plural := "s"
	if count == 1 {
		plural = ""
	}

	parts := []string{fmt.Sprintf("Deployed %d contract%s on Base", count, plural)}

	if verified := p.VerifiedCount(); verified > 0 {
		parts = append(parts, fmt.Sprintf("%d verified on Basescan", verified))
	}
	if largest := p.MaxCodeSize(); largest > largeProgramSize {
		parts = append(parts, fmt.Sprintf("largest contract is %.1fKB (substantial complexity)", float64(largest)/1024))
	}
	if p.Interactors > 0 {
		parts = append(parts, fmt.Sprintf("%d unique users interacted with their contracts", p.Interactors))
	}
	if p.RecentActivity {
		parts = append(parts, "active in the last 7 days")
	}
	parts = append(parts, fmt.Sprintf("%d total transactions", p.TxCount))

	return strings.Join(parts, ". ") + fmt.Sprintf(". Score: %d/100.", total)
}
