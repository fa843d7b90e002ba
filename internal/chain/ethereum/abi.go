package ethereum

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/smallbiznis/claimsync/internal/chain/domain"
)

// contractABI declares the three insurance contract events.
const contractABI = `[
	{"anonymous":false,"name":"PremiumPaid","type":"event","inputs":[
		{"indexed":true,"internalType":"address","name":"buyer","type":"address"},
		{"indexed":false,"internalType":"uint256","name":"amount","type":"uint256"},
		{"indexed":false,"internalType":"uint256","name":"timestamp","type":"uint256"}]},
	{"anonymous":false,"name":"ClaimSubmitted","type":"event","inputs":[
		{"indexed":true,"internalType":"address","name":"buyer","type":"address"},
		{"indexed":false,"internalType":"string","name":"claimId","type":"string"},
		{"indexed":false,"internalType":"uint256","name":"amount","type":"uint256"}]},
	{"anonymous":false,"name":"ClaimVerified","type":"event","inputs":[
		{"indexed":false,"internalType":"string","name":"claimId","type":"string"},
		{"indexed":false,"internalType":"bool","name":"status","type":"bool"}]}
]`

var eventNames = map[domain.EventKind]string{
	domain.KindPremiumPaid:    "PremiumPaid",
	domain.KindClaimSubmitted: "ClaimSubmitted",
	domain.KindClaimVerified:  "ClaimVerified",
}

// ParseABI returns the parsed contract ABI.
func ParseABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(contractABI))
}
