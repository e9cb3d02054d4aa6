package service

import "strings"

// knownEntities maps well-known addresses (lower-cased) to a human-readable
// identity. Consulted before any live lookup so even basic-tier reports can
// name an exchange hot wallet or notable account.
var knownEntities = map[string]string{
	"0x28c6c06298d514db089934071355e5743bf21d60": "Binance 14 (exchange hot wallet)",
	"0x21a31ee1afc51d94c2efccaa2092ad1028285549": "Binance 15 (exchange hot wallet)",
	"0xdfd5293d8e347dfe59e90efd55b2956a1343963d": "Binance 16 (exchange hot wallet)",
	"0x71660c4005ba85c37ccec55d0c4493e66fe775d3": "Coinbase 1 (exchange)",
	"0x503828976d22510aad0201ac7ec88293211d23da": "Coinbase 2 (exchange)",
	"0x3cd751e6b0078be393132286c442345e5dc49699": "Coinbase 4 (exchange hot wallet)",
	"0x2910543af39aba0cd09dbb2d50200b3e800a63d2": "Kraken (exchange)",
	"0x0d0707963952f2fba59dd06f2b425ace40b492fe": "Gate.io (exchange)",
	"0xdc76cd25977e0a5ae17155770273ad58648900d3": "Huobi (exchange)",
	"0x7a250d5630b4cf539739df2c5dacb4c659f2488d": "Uniswap V2 Router",
	"0xe592427a0aece92de3edee1f18e0157c05861564": "Uniswap V3 Router",
	"0xdef1c0ded9bec7f1a1670819833240f027b25eff": "0x Protocol exchange proxy",
	"0x00000000006c3852cbef3e08e8df289169ede581": "OpenSea Seaport",
	"0xd8da6bf26964af9d7eed9e03e53415d37aa96045": "vitalik.eth",
	"0xab5801a7d398351b8be11c439e05c5b3259aec9b": "Vitalik Buterin (legacy)",
	"0x000000000000000000000000000000000000dead": "Burn address",
	"0x0000000000000000000000000000000000000000": "Null address",
}

// KnownEntity returns the identity tag for an address, if any.
func KnownEntity(address string) (string, bool) {
	name, ok := knownEntities[strings.ToLower(address)]
	return name, ok
}
