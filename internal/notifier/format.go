package notifier

import (
	"fmt"
	"strings"

	"patron/internal/models"

	"github.com/ethereum/go-ethereum/common"
)

const hashtags = "#ThePatron #BuildOnBase"

// Formatter renders announcements. Links point at the human-facing explorer.
type Formatter struct {
	ExplorerSite string
}

// ShortAddress renders 0x1234...abcd
func ShortAddress(addr common.Address) string {
	hex := strings.ToLower(addr.Hex())
	return hex[:6] + "..." + hex[len(hex)-4:]
}

func (f Formatter) Grant(g models.Grant) string {
	return strings.Join([]string{
		fmt.Sprintf("Grant #%d | Round %d", g.ID, g.RoundID),
		"",
		"Recipient: " + ShortAddress(g.Recipient),
		fmt.Sprintf("Amount: %s ETH", g.Amount.String()),
		fmt.Sprintf("Score: %d/100", g.Score.Total),
		"",
		g.Score.Summary,
		"",
		"Tx: " + f.ExplorerSite + "/tx/" + g.TxHash.Hex(),
		"",
		hashtags + " #AutonomousGrants",
	}, "\n")
}

func (f Formatter) Round(s RoundSummary) string {
	lines := []string{
		fmt.Sprintf("Round %d Complete: %q", s.Round, s.Theme),
		"",
		fmt.Sprintf("%d grants disbursed | %s ETH total", len(s.Grants), s.Total().StringFixed(4)),
		fmt.Sprintf("%d addresses evaluated", s.Evaluated),
		fmt.Sprintf("Treasury remaining: %s ETH", s.TreasuryBalance.String()),
		"",
	}
	if top, ok := s.Top(); ok {
		lines = append(lines, fmt.Sprintf("Top grant: %s (%d/100)", ShortAddress(top.Recipient), top.Score.Total), "")
	}
	lines = append(lines, "All decisions verifiable onchain.", "", hashtags)
	return strings.Join(lines, "\n")
}

func (f Formatter) Live(treasury common.Address) string {
	return strings.Join([]string{
		"The Patron is live.",
		"",
		"An autonomous agent that discovers builders on Base,",
		"evaluates their onchain work, and sends them ETH micro-grants.",
		"",
		"No human in the loop. Every decision verifiable onchain.",
		"",
		"Treasury: " + f.ExplorerSite + "/address/" + treasury.Hex(),
		"",
		hashtags + " #AutonomousGrants",
	}, "\n")
}
