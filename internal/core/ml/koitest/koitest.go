// Package koitest generates synthetic KOI tables with well separated clusters per
// disposition. It is used by tests across the ml and usecase packages.
package koitest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math/rand"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
	"github.com/kirillkom/koi-classifier/internal/core/ml/schema"
	"github.com/kirillkom/koi-classifier/internal/core/ml/table"
)

var dispositions = []domain.Disposition{
	domain.DispositionFalsePositive,
	domain.DispositionConfirmed,
	domain.DispositionCandidate,
}

// Class returns the disposition generated for row i.
func Class(i int) domain.Disposition {
	return dispositions[i%len(dispositions)]
}

// Records returns a KOI header and n rows. Row i belongs to Class(i+offset).
func Records(n, offset int, seed int64, withLabel bool) ([]string, [][]string) {
	rng := rand.New(rand.NewSource(seed))

	var header []string
	for _, f := range schema.KOI {
		if f.Name == domain.ColumnDisposition && !withLabel {
			continue
		}
		header = append(header, f.Name)
	}

	rows := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		idx := i + offset
		disposition := Class(idx)
		class, _ := domain.EncodeDisposition(string(disposition))
		c := float64(class)
		noise := func(scale float64) float64 { return (rng.Float64()*2 - 1) * scale }
		flag := "0"
		if disposition == domain.DispositionFalsePositive {
			flag = "1"
		}

		values := map[string]string{
			"kepid":             fmt.Sprintf("%d", 10000000+idx),
			"kepoi_name":        fmt.Sprintf("K%05d.01", idx),
			"kepler_name":       fmt.Sprintf("Kepler-%d b", idx),
			"koi_disposition":   string(disposition),
			"koi_pdisposition":  "CANDIDATE",
			"koi_score":         f4(0.5 + noise(0.4)),
			"koi_fpflag_nt":     flag,
			"koi_fpflag_ss":     "0",
			"koi_fpflag_co":     "0",
			"koi_fpflag_ec":     "0",
			"koi_tce_plnt_num":  "1",
			"koi_tce_delivname": "q1_q17_dr25_tce",
			"koi_model_snr":     f4(20 + 40*c + noise(5)),
			"ra":                f4(290 + noise(5)),
			"dec":               f4(44 + noise(3)),
			"koi_kepmag":        f4(12 + 2*c + noise(0.5)),
		}
		measure := func(name string, centre, spread float64) {
			values[name] = f4(centre + noise(spread))
			values[name+"_err1"] = f4(0.01 * (1 + rng.Float64()))
			values[name+"_err2"] = f4(-0.01 * (1 + rng.Float64()))
		}
		measure("koi_period", 5+30*c, 3)
		measure("koi_time0bk", 150+noise(10), 5)
		measure("koi_impact", 0.2+0.3*c, 0.05)
		measure("koi_duration", 2+3*c, 0.5)
		measure("koi_depth", 200+800*c, 50)
		measure("koi_prad", 1+4*c, 0.5)
		measure("koi_teq", 500+400*c, 40)
		measure("koi_insol", 10+100*c, 5)
		measure("koi_steff", 5000+500*c, 100)
		measure("koi_slogg", 4.0+0.2*c, 0.05)
		measure("koi_srad", 0.8+0.4*c, 0.05)

		row := make([]string, len(header))
		for j, name := range header {
			row[j] = values[name]
		}
		rows = append(rows, row)
	}
	return header, rows
}

func Table(n, offset int, seed int64, withLabel bool) *table.Table {
	header, rows := Records(n, offset, seed, withLabel)
	t, err := table.FromRecords(header, rows)
	if err != nil {
		panic(err)
	}
	return t
}

func CSV(n, offset int, seed int64, withLabel bool) []byte {
	header, rows := Records(n, offset, seed, withLabel)
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(header)
	_ = w.WriteAll(rows)
	return buf.Bytes()
}

func f4(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
