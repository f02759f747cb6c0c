package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"riskCore/internal/analytics"
	"riskCore/internal/domain"
	"riskCore/internal/risk"
)

func sampleReport() levelReport {
	return levelReport{
		ATR:  1.25,
		Bars: 120,
		Levels: []domain.Level{
			{ID: "a", Type: domain.LevelSupport, PriceLow: 99.5, PriceHigh: 100.5, Strength: domain.StrengthStrong, Method: domain.MethodCluster, Timeframe: "1h", Touches: 4},
			{ID: "b", Type: domain.LevelDailyHigh, PriceLow: 110, PriceHigh: 110.2, Strength: domain.StrengthModerate, Method: domain.MethodPivot, Timeframe: "1h", Label: "PDH"},
		},
	}
}

func TestRenderLevels_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderLevels(&buf, sampleReport(), "table"))

	out := buf.String()
	assert.Contains(t, out, "2 levels from 120 bars, ATR 1.2500")
	assert.Contains(t, out, "TYPE")
	assert.Contains(t, out, "99.5000")
	assert.Contains(t, out, "PDH")
	assert.Contains(t, out, "cluster")
}

func TestRenderLevels_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderLevels(&buf, sampleReport(), "json"))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 120.0, decoded["bars"])
	lvls := decoded["levels"].([]interface{})
	require.Len(t, lvls, 2)
	assert.Equal(t, "support", lvls[0].(map[string]interface{})["level_type"])
}

func TestRenderLevels_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderLevels(&buf, sampleReport(), "yaml"))

	var decoded levelReport
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Levels, 2)
	assert.Equal(t, domain.LevelDailyHigh, decoded.Levels[1].Type)
	assert.Equal(t, "PDH", decoded.Levels[1].Label)
}

func TestRenderLevels_UnknownFormat(t *testing.T) {
	err := renderLevels(&bytes.Buffer{}, sampleReport(), "xml")
	assert.Error(t, err)
}

func TestComputeSize(t *testing.T) {
	cfg := risk.DefaultConfig()
	cfg.MaxPositionSize = 0
	cfg.Leverage = 5

	res, err := computeSize(cfg, 10000, 100, 98)
	require.NoError(t, err)

	assert.Equal(t, "50.000", res.Quantity.StringFixed(3))
	assert.Equal(t, "5000.00", res.Notional.StringFixed(2))
	assert.Equal(t, "100.00", res.RiskValue.StringFixed(2))
	assert.Equal(t, "1000.00", res.Margin.StringFixed(2))

	var buf bytes.Buffer
	require.NoError(t, printSize(&buf, res, cfg.LotPrecision))
	assert.Contains(t, buf.String(), "quantity: 50.000")
	assert.Contains(t, buf.String(), "margin:   1000.00")
}

func TestComputeSize_CappedAndInvalid(t *testing.T) {
	cfg := risk.DefaultConfig()
	res, err := computeSize(cfg, 10000, 100, 98)
	require.NoError(t, err)
	assert.Equal(t, "10.000", res.Quantity.StringFixed(3))

	cfg.RiskPerTradePct = 0
	_, err = computeSize(cfg, 10000, 100, 98)
	assert.Error(t, err)
}

func TestPrintSummary(t *testing.T) {
	exit := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	trades := []*domain.Trade{
		{PNL: 40, Trigger: domain.TriggerTakeProfit, EntryTime: exit.Add(-time.Hour), ExitTime: exit},
		{PNL: -20, Trigger: domain.TriggerStopLoss, EntryTime: exit, ExitTime: exit.Add(time.Hour)},
	}

	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, "ETHUSDT", analytics.Summarize(trades, 1000)))
	out := buf.String()
	assert.Contains(t, out, "ETHUSDT: 2 trades, win rate 50.0%")
	assert.Contains(t, out, "final balance 1020.0000")
	assert.Contains(t, out, "take-profit")
	assert.Contains(t, out, "stop-loss")

	buf.Reset()
	require.NoError(t, printSummary(&buf, "BTCUSDT", analytics.Summarize(nil, 1000)))
	assert.Equal(t, "BTCUSDT: no closed trades\n", buf.String())
}
