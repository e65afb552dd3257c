package executor

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/parser"
)

var benchTitles = []string{
	"mapa topográfico de aragón",
	"ortofoto de zaragoza",
	"red de carreteras",
	"mapa geológico de huesca",
	"cartografía catastral de teruel",
}

func benchExecutor(b *testing.B, n int) (*Executor, *parser.Parser) {
	b.Helper()
	a := tokenizer.NewSpanish(tokenizer.DefaultConfig())
	m := index.NewMemoryIndex(a)
	for i := 0; i < n; i++ {
		w := float64(i%20) - 10
		m.AddDocument(document.ID(i), geoDoc(fmt.Sprintf("r%05d.xml", i), benchTitles[i%len(benchTitles)], w, w+2, 35+float64(i%10), 37+float64(i%10)))
	}
	return New(m), parser.New(document.FieldTitle, a)
}

func BenchmarkExecute(b *testing.B) {
	exec, p := benchExecutor(b, 20000)
	queries := []struct {
		name  string
		query string
	}{
		{"term", "mapa"},
		{"or", "mapa ortofoto"},
		{"and", "mapa AND aragón"},
		{"not", "mapa NOT geológico"},
		{"spatial", "spatial:-5,5,36,40"},
		{"spatial_text", "spatial:-5,5,36,40 carreteras"},
	}
	for _, q := range queries {
		node, err := p.ParseLine(q.query)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				if _, err := exec.Execute(context.Background(), node, 10); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkExecuteParallel(b *testing.B) {
	exec, p := benchExecutor(b, 20000)
	node, err := p.ParseLine("mapa OR ortofoto")
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := exec.Execute(context.Background(), node, 10); err != nil {
				b.Error(err)
				return
			}
		}
	})
}
