package ledger

import (
	"bytes"
	"fmt"

	"github.com/tradelayer/tradelayerd/util"
	"gopkg.in/yaml.v2"
)

// ParamsYAMLAble is the YAML-marshalable counterpart of Params. Amounts are
// kept as fixed 8-decimal strings so the file never depends on float parsing
type ParamsYAMLAble struct {
	Name                   string `yaml:"name"`
	VestingActivationBlock uint64 `yaml:"vesting_activation_block"`
	OneYearBlocks          uint64 `yaml:"one_year_blocks"`
	VolumeMultiplier       int64  `yaml:"volume_multiplier"`
	VestingSupply          string `yaml:"vesting_supply"`
	NativeSupply           string `yaml:"native_supply"`
}

func (p *Params) YAMLAble() *ParamsYAMLAble {
	return &ParamsYAMLAble{
		Name:                   p.Name,
		VestingActivationBlock: p.VestingActivationBlock,
		OneYearBlocks:          p.OneYearBlocks,
		VolumeMultiplier:       p.VolumeMultiplier,
		VestingSupply:          p.VestingSupply.String(),
		NativeSupply:           p.NativeSupply.String(),
	}
}

const paramsFileComment = `# TradeLayer network parameter set.
# The file is informational: the node derives the same constants from the
# 'network' name in its config. All block values are carrier-chain heights.
`

func (p *ParamsYAMLAble) YAML() []byte {
	var buf bytes.Buffer
	data, err := yaml.Marshal(p)
	util.AssertNoError(err)
	buf.WriteString(paramsFileComment)
	buf.Write(data)
	return buf.Bytes()
}

func (p *ParamsYAMLAble) params() (Params, error) {
	ret := Params{
		Name:                   p.Name,
		VestingActivationBlock: p.VestingActivationBlock,
		OneYearBlocks:          p.OneYearBlocks,
		VolumeMultiplier:       p.VolumeMultiplier,
	}
	var err error
	if ret.VestingSupply, err = AmountFromString(p.VestingSupply); err != nil {
		return Params{}, err
	}
	if ret.NativeSupply, err = AmountFromString(p.NativeSupply); err != nil {
		return Params{}, err
	}
	if ret.Name == "" {
		return Params{}, fmt.Errorf("network name is mandatory")
	}
	return ret, nil
}

func ParamsFromYAML(data []byte) (Params, error) {
	yamlAble := &ParamsYAMLAble{}
	if err := yaml.Unmarshal(data, yamlAble); err != nil {
		return Params{}, err
	}
	return yamlAble.params()
}
