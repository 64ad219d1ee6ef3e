package fields

import (
	"strings"

	"github.com/username/portafolio/backend/src/models"
)

type keywordFamily struct {
	keyword    string
	kind       models.MovementType
	keepTicker bool
}

// movementFamilies is evaluated top to bottom and the first hit wins.
// Keywords are stored accent-free; labels are folded before matching.
// Order matters: "liquidación de caución" hits the caución family first.
var movementFamilies = []keywordFamily{
	{"compra", models.MovementPurchase, true},
	{"venta", models.MovementSale, true},
	{"deposito", models.MovementDeposit, false},
	{"extraccion", models.MovementWithdrawal, false},
	{"dividendo", models.MovementDividend, true},
	{"caucion", models.MovementRepoLending, false},
	{"liquidacion", models.MovementRepoSettlement, false},
	{"suscripcion", models.MovementFundSubscription, true},
	{"rescate", models.MovementFundRedemption, true},
	{"credito", models.MovementCredit, false},
}

// ParseMovementType splits a combined label such as "Compra (YPFD)" into a movement
// type and an optional ticker taken from the first parenthesis pair.
// Unmatched labels are MovementOther and keep whatever ticker they carried.
func ParseMovementType(label string) (models.MovementType, *string) {
	label = strings.TrimSpace(label)
	if label == "" {
		return models.MovementOther, nil
	}

	ticker := extractTicker(label)
	head := label
	if i := strings.IndexByte(label, '('); i >= 0 {
		head = label[:i]
	}
	head = fold(head)

	for _, f := range movementFamilies {
		if strings.Contains(head, f.keyword) {
			if !f.keepTicker {
				return f.kind, nil
			}
			return f.kind, ticker
		}
	}
	return models.MovementOther, ticker
}

func extractTicker(label string) *string {
	open := strings.IndexByte(label, '(')
	if open < 0 {
		return nil
	}
	end := strings.IndexByte(label[open+1:], ')')
	if end < 0 {
		return nil
	}
	t := strings.TrimSpace(label[open+1 : open+1+end])
	if t == "" {
		return nil
	}
	return &t
}
