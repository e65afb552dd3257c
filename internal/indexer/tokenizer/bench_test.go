package tokenizer

import (
	"strings"
	"testing"
)

var sampleTexts = map[string]string{
	"title": "Mapa topográfico de Aragón 1:25.000",
	"abstract": `Cartografía vectorial de la red hidrográfica de la cuenca del Ebro,
		con los cauces permanentes y temporales, embalses y canales principales.
		Los datos proceden de la restitución fotogramétrica del vuelo de 2015.`,
	"long": strings.Repeat(`Ortofotografía aérea de alta resolución del territorio
		con tamaño de píxel de veinticinco centímetros, corregida y mosaicada. `, 40),
}

func BenchmarkSpanishTokenize(b *testing.B) {
	s := NewSpanish(DefaultConfig())
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for b.Loop() {
				_ = s.Tokenize(text)
			}
		})
	}
}

func BenchmarkSpanishTokenizeParallel(b *testing.B) {
	s := NewSpanish(DefaultConfig())
	text := sampleTexts["abstract"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = s.Tokenize(text)
		}
	})
}

func BenchmarkSpanishNoStemming(b *testing.B) {
	s := NewSpanish(Config{MinTokenLength: 1, EnableStopwords: true})
	text := sampleTexts["abstract"]
	b.ReportAllocs()
	for b.Loop() {
		_ = s.Tokenize(text)
	}
}
