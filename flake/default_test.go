package flake

import "testing"

func TestDefaultReplaceable(t *testing.T) {
	gen, err := NewGenerator(Settings{MachineID: i64(42)})
	if err != nil {
		t.Fatal(err)
	}
	SetDefault(gen)
	defer SetDefault(nil)

	got, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	if got != gen {
		t.Fatalf("default generator, expected: %p, actual: %p", gen, got)
	}
	id, err := Next()
	if err != nil {
		t.Fatal(err)
	}
	if _, _, mid := Decompose(id); mid != 42 {
		t.Fatalf("machine id, expected: %v, actual: %v", 42, mid)
	}
}
