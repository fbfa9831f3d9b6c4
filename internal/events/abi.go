package events

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const ledgerABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "streamId", "type": "uint256"},
      {"indexed": true, "name": "sender", "type": "address"},
      {"indexed": true, "name": "recipient", "type": "address"},
      {"indexed": false, "name": "token", "type": "address"},
      {"indexed": false, "name": "deposit", "type": "uint256"},
      {"indexed": false, "name": "ratePerSecond", "type": "uint256"},
      {"indexed": false, "name": "startTime", "type": "uint64"},
      {"indexed": false, "name": "duration", "type": "uint64"}
    ],
    "name": "StreamCreated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "streamId", "type": "uint256"},
      {"indexed": true, "name": "recipient", "type": "address"},
      {"indexed": false, "name": "token", "type": "address"},
      {"indexed": false, "name": "amount", "type": "uint256"},
      {"indexed": false, "name": "withdrawn", "type": "uint256"}
    ],
    "name": "StreamClaimed",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "streamId", "type": "uint256"},
      {"indexed": true, "name": "sender", "type": "address"},
      {"indexed": true, "name": "recipient", "type": "address"},
      {"indexed": false, "name": "token", "type": "address"},
      {"indexed": false, "name": "recipientAmount", "type": "uint256"},
      {"indexed": false, "name": "senderRefund", "type": "uint256"}
    ],
    "name": "StreamCancelled",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "poolId", "type": "uint256"},
      {"indexed": true, "name": "creator", "type": "address"},
      {"indexed": false, "name": "tokenA", "type": "address"},
      {"indexed": false, "name": "tokenB", "type": "address"},
      {"indexed": false, "name": "amountA", "type": "uint256"},
      {"indexed": false, "name": "amountB", "type": "uint256"},
      {"indexed": false, "name": "shares", "type": "uint256"}
    ],
    "name": "PoolCreated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "poolId", "type": "uint256"},
      {"indexed": true, "name": "provider", "type": "address"},
      {"indexed": false, "name": "amountA", "type": "uint256"},
      {"indexed": false, "name": "amountB", "type": "uint256"},
      {"indexed": false, "name": "shares", "type": "uint256"}
    ],
    "name": "LiquidityAdded",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "poolId", "type": "uint256"},
      {"indexed": true, "name": "provider", "type": "address"},
      {"indexed": false, "name": "amountA", "type": "uint256"},
      {"indexed": false, "name": "amountB", "type": "uint256"},
      {"indexed": false, "name": "shares", "type": "uint256"}
    ],
    "name": "LiquidityRemoved",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "poolId", "type": "uint256"},
      {"indexed": true, "name": "trader", "type": "address"},
      {"indexed": false, "name": "tokenIn", "type": "address"},
      {"indexed": false, "name": "tokenOut", "type": "address"},
      {"indexed": false, "name": "amountIn", "type": "uint256"},
      {"indexed": false, "name": "amountOut", "type": "uint256"},
      {"indexed": false, "name": "fee", "type": "uint256"}
    ],
    "name": "Swapped",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "poolId", "type": "uint256"},
      {"indexed": true, "name": "recipient", "type": "address"},
      {"indexed": false, "name": "amountA", "type": "uint256"},
      {"indexed": false, "name": "amountB", "type": "uint256"}
    ],
    "name": "FeesCollected",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "name": "account", "type": "address"}
    ],
    "name": "Paused",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "name": "account", "type": "address"}
    ],
    "name": "Unpaused",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "poolId", "type": "uint256"},
      {"indexed": true, "name": "account", "type": "address"},
      {"indexed": false, "name": "paused", "type": "bool"}
    ],
    "name": "PoolPauseChanged",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "previous", "type": "address"},
      {"indexed": true, "name": "current", "type": "address"}
    ],
    "name": "FeeRecipientUpdated",
    "type": "event"
  }
]`

var (
	ledgerABI     abi.ABI
	ledgerABIOnce sync.Once
	ledgerABIErr  error
)

// LedgerABI returns the parsed ABI of ledger notifications.
func LedgerABI() (abi.ABI, error) {
	ledgerABIOnce.Do(func() {
		ledgerABI, ledgerABIErr = abi.JSON(strings.NewReader(ledgerABIJSON))
	})
	return ledgerABI, ledgerABIErr
}
