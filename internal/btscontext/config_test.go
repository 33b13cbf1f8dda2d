package btscontext

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const sampleConfig = `
GSM:
  Timer:
    T3101: 4s
    T3109: 30s
    T3113: 7s
  CellOptions:
    RADIO-LINK-TIMEOUT: 15
  CellSelection:
    NECI: 1
  Handover:
    Margin: 5
    RXLEV_DL:
      Target: -85
      History: 6
  RACH:
    TxInteger: 9
  Channels:
    SDCCHReserve: 1
Control:
  VEA: true
CellIdentity: 1
LAC: 100
ARFCN: 512
StatsFilePattern: "stats-%Y%m%d-%H%M%S.log"
`

func TestConfigUnmarshalsTimerAndHandoverFields(t *testing.T) {
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(sampleConfig), &cfg))

	assert.Equal(t, Duration(4*time.Second), cfg.GSM.Timer.T3101)
	assert.Equal(t, Duration(30*time.Second), cfg.GSM.Timer.T3109)
	assert.Equal(t, 15, cfg.GSM.CellOptions.RadioLinkTimeout)
	assert.Equal(t, -85, cfg.GSM.Handover.RXLevDL.Target)
	assert.Equal(t, 1, cfg.GSM.CellSelection.NECI)
	assert.Equal(t, 9, cfg.GSM.RACH.TxInteger)
	assert.Equal(t, 1, cfg.GSM.Channels.SDCCHReserve)
	assert.True(t, cfg.Control.VEA)
	assert.Equal(t, 512, cfg.ARFCN)
}

func TestValidateRejectsT3109BelowRadioLinkTimeoutFloor(t *testing.T) {
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(sampleConfig), &cfg))
	cfg.GSM.Timer.T3109 = Duration(5 * time.Second) // below 15*0.48s = 7.2s

	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateAcceptsSampleConfig(t *testing.T) {
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(sampleConfig), &cfg))

	assert.NoError(t, cfg.Validate())
}
