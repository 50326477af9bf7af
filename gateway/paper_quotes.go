package gateway

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"rotation-trader/market"
)

// LoadQuotes 从 "symbol,bid,ask,last[,volume]" CSV 批量更新行情，
// 可带表头，# 开头为注释。每条行情都会触发撮合。返回加载条数。
func (p *Paper) LoadQuotes(r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	n := 0
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("read quotes: %w", err)
		}
		if len(rec) < 4 {
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "symbol") {
			continue
		}
		nums := make([]float64, 4)
		ok := true
		for i := 1; i < len(rec) && i <= 4; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				ok = false
				break
			}
			nums[i-1] = v
		}
		q := market.Quote{
			Symbol: strings.TrimSpace(rec[0]),
			Bid:    nums[0],
			Ask:    nums[1],
			Last:   nums[2],
			Volume: nums[3],
			Ts:     p.clock(),
		}
		if !ok || q.Symbol == "" || !q.Valid() {
			continue
		}
		p.SetQuote(q)
		n++
	}
}

func (p *Paper) clock() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.now()
}
