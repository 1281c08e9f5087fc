package words

import (
	"reflect"
	"testing"
)

func TestRawWordsDeterministic(t *testing.T) {
	text := "Which of these BIRDS has the longest wingspan?"
	first := RawWords(text)
	second := RawWords(text)
	if first != second {
		t.Errorf("RawWords not deterministic: %q vs %q", first, second)
	}
	if first == "" {
		t.Error("RawWords returned empty string for non-empty input")
	}
}

func TestNormalizeCleansText(t *testing.T) {
	got := Normalize("Fish, Chips and CATS!")
	want := []string{"fish", "chip", "cat"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize = %v, want %v", got, want)
	}
}

func TestNormalizeDropsAnd(t *testing.T) {
	for _, word := range Normalize("salt and pepper AND vinegar") {
		if word == "and" {
			t.Fatal("Normalize kept the word \"and\"")
		}
	}
}

func TestNormalizeStemsTokens(t *testing.T) {
	got := Normalize("running dogs")
	want := []string{"run", "dog"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize = %v, want %v", got, want)
	}
}

func TestNormalizePassesThroughNumbers(t *testing.T) {
	got := Normalize("route 66")
	want := []string{"rout", "66"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize = %v, want %v", got, want)
	}
}

func TestSignificantWordsFiltersStopWords(t *testing.T) {
	got := SignificantWords(Normalize("the capital of France is Paris"))
	for _, word := range got {
		if word == "the" || word == "of" || word == "is" {
			t.Errorf("SignificantWords kept stop-word %q", word)
		}
	}
	if len(got) == 0 {
		t.Error("SignificantWords dropped every word")
	}
}

func TestSignificantWordsDropsShortTokens(t *testing.T) {
	got := SignificantWords([]string{"ox", "elephant"})
	want := []string{"elephant"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SignificantWords = %v, want %v", got, want)
	}
}
