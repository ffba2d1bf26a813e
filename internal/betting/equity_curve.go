package betting

import (
	"bytes"
	"strconv"
	"time"
)

// EquityPoint represents the bankroll at one point of the settlement order
type EquityPoint struct {
	Time     time.Time `json:"time"`
	MatchID  string    `json:"match_id,omitempty"`
	Value    float64   `json:"value"`
	Drawdown float64   `json:"drawdown"`
}

// EquityCurve represents a sequence of equity points in settlement order
type EquityCurve []EquityPoint

// Record appends a point, computing its drawdown from the running peak
func (e *EquityCurve) Record(t time.Time, matchID string, value float64) {
	peak := value
	for _, p := range *e {
		if p.Value > peak {
			peak = p.Value
		}
	}
	drawdown := 0.0
	if peak > 0 && value < peak {
		drawdown = (peak - value) / peak
	}
	*e = append(*e, EquityPoint{Time: t, MatchID: matchID, Value: value, Drawdown: drawdown})
}

// MaxDrawdown returns the largest peak-to-trough fall as a fraction of the peak
func (e EquityCurve) MaxDrawdown() float64 {
	maxDD := 0.0
	peak := 0.0
	for _, p := range e {
		if p.Value > peak {
			peak = p.Value
		}
		if peak == 0 {
			continue
		}
		drawdown := (peak - p.Value) / peak
		if drawdown > maxDD {
			maxDD = drawdown
		}
	}
	return maxDD
}

// GetReturns calculates per-bet returns from the equity curve
func (e EquityCurve) GetReturns() []float64 {
	if len(e) < 2 {
		return []float64{}
	}
	returns := make([]float64, 0, len(e)-1)
	for i := 1; i < len(e); i++ {
		prev := e[i-1].Value
		curr := e[i].Value
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (curr-prev)/prev)
	}
	return returns
}

// GetVolatility calculates standard deviation of returns
func (e EquityCurve) GetVolatility() float64 {
	return stddev(e.GetReturns())
}

// ToCSV exports equity curve to CSV string
func (e EquityCurve) ToCSV() string {
	var buf bytes.Buffer
	buf.WriteString("time,match_id,value,drawdown\n")
	for _, point := range e {
		buf.WriteString(point.Time.Format(time.RFC3339))
		buf.WriteString(",")
		buf.WriteString(point.MatchID)
		buf.WriteString(",")
		buf.WriteString(formatFloat(point.Value))
		buf.WriteString(",")
		buf.WriteString(formatFloat(point.Drawdown))
		buf.WriteString("\n")
	}
	return buf.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
