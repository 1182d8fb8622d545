package cardano

// ChainParams are the per-network constants needed to derive addresses and
// price transactions. Fee and min-UTxO values are the current protocol
// parameters; they change rarely and can be overridden from config.
type ChainParams struct {
	NetworkID    byte   // low nibble of the address header: 1 mainnet, 0 testnets
	AddressHRP   string // bech32 prefix for payment addresses
	MinFeeA      uint64 // fee per byte (lovelace)
	MinFeeB      uint64 // fee constant (lovelace)
	MinUtxo      uint64 // minimum lovelace an output must carry
	MaxExMem     uint64 // per-tx execution memory budget
	MaxExSteps   uint64 // per-tx execution steps budget
	DefaultTTL   uint64 // slots added to the current slot for the tx TTL
	SlotsPerHour uint64
}

var MainNetChain ChainParams = ChainParams{
	NetworkID:    1,
	AddressHRP:   "addr",
	MinFeeA:      44,
	MinFeeB:      155381,
	MinUtxo:      1_000_000,
	MaxExMem:     14_000_000,
	MaxExSteps:   10_000_000_000,
	DefaultTTL:   7200,
	SlotsPerHour: 3600,
}

var PreprodChain ChainParams = ChainParams{
	NetworkID:    0,
	AddressHRP:   "addr_test",
	MinFeeA:      44,
	MinFeeB:      155381,
	MinUtxo:      1_000_000,
	MaxExMem:     14_000_000,
	MaxExSteps:   10_000_000_000,
	DefaultTTL:   7200,
	SlotsPerHour: 3600,
}

var PreviewChain ChainParams = ChainParams{
	NetworkID:    0,
	AddressHRP:   "addr_test",
	MinFeeA:      44,
	MinFeeB:      155381,
	MinUtxo:      1_000_000,
	MaxExMem:     14_000_000,
	MaxExSteps:   10_000_000_000,
	DefaultTTL:   7200,
	SlotsPerHour: 3600,
}

func ChainFromNetworkName(name string) *ChainParams {
	switch name {
	case "mainnet":
		return &MainNetChain
	case "preprod":
		return &PreprodChain
	case "preview":
		return &PreviewChain
	default:
		return &PreprodChain
	}
}

func ChainFromTestNetFlag(isTestNet bool) *ChainParams {
	if isTestNet {
		return &PreprodChain
	}
	return &MainNetChain
}
