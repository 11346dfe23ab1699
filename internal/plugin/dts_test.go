package plugin

import "testing"

func TestGenerateDTSCoversEveryAPIMethod(t *testing.T) {
	out := GenerateDTS()
	for _, s := range apiSpecs {
		if !contains(out, s.Name+"(") {
			t.Errorf("GenerateDTS output missing declaration for %q:\n%s", s.Name, out)
		}
	}
}

func TestGenerateDTSMarksPromiseAndThenableReturns(t *testing.T) {
	out := GenerateDTS()
	if !contains(out, "delay(ms: number): Promise<void>;") {
		t.Errorf("expected delay to declare a Promise<void> return, got:\n%s", out)
	}
	if !contains(out, "kill(): void") {
		t.Errorf("expected a thenable method to declare a kill() member, got:\n%s", out)
	}
}
