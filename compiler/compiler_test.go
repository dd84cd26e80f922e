package compiler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/isac/compiler/back"
	"github.com/slowlang/isac/compiler/format"
	"github.com/slowlang/isac/compiler/front"
	"github.com/slowlang/isac/compiler/isa"
)

func overture(t *testing.T) *isa.Dialect {
	t.Helper()

	d, err := isa.ParseFile(context.Background(), "isa/testdata/overture.isa")
	require.NoError(t, err)

	return d
}

func TestCompileFile(t *testing.T) {
	d := overture(t)

	opts := DefaultOptions()
	opts.Labels = format.LabelsUsed

	obj, err := CompileFile(context.Background(), d, opts, "testdata/add_five.kt")
	require.NoError(t, err)

	assert.Equal(t, `; compiled for overture
main:
	mov r1, in
	im 5
	mov r2, r0
	add
	mov out, r3
`, string(obj))

	opts.Optimize = false

	obj, err = CompileFile(context.Background(), d, opts, "testdata/add_five.kt")
	require.NoError(t, err)

	assert.Equal(t, `; compiled for overture
main:
	mov r5, in
	mov r1, r5
	im 5
	mov r2, r0
	add
	mov r5, r3
	mov out, r5
`, string(obj))
}

func TestCompileOptimize(t *testing.T) {
	d := overture(t)

	src := []byte(`fun main() { output(output(output(2))) }`)

	opts := DefaultOptions()
	opts.Optimize = false
	opts.Header = false

	obj, err := Compile(context.Background(), d, opts, "a.kt", src)
	require.NoError(t, err)

	assert.Equal(t, `main:
L0_main:
	im 2
	mov out, r0
	im 2
	mov out, r0
	im 2
	mov out, r0
L1_main:
`, string(obj))

	opts.Optimize = true

	obj, err = Compile(context.Background(), d, opts, "a.kt", src)
	require.NoError(t, err)

	assert.Equal(t, `main:
L0_main:
	im 2
	mov out, r0
	mov out, r0
	mov out, r0
L1_main:
`, string(obj))
}

func TestCompileMaze(t *testing.T) {
	d := overture(t)

	obj, err := CompileFile(context.Background(), d, DefaultOptions(), "testdata/maze.kt")
	require.NoError(t, err)

	assert.Contains(t, string(obj), "\tim L1_main\n\tjmp\n")
	assert.Contains(t, string(obj), "L3_main:\n")
}

func TestCompileErrors(t *testing.T) {
	d := overture(t)

	_, err := Compile(context.Background(), d, DefaultOptions(), "a.kt", []byte(`fun main() { output(b) }`))

	var ue *back.UnresolvedSymbolError
	assert.True(t, errors.As(err, &ue), "err: %v", err)

	_, err = Compile(context.Background(), d, DefaultOptions(), "a.kt", []byte(`fun main() { output(1 }`))

	var pe front.UnexpectedError
	assert.True(t, errors.As(err, &pe), "err: %v", err)

	_, err = CompileFile(context.Background(), d, DefaultOptions(), "testdata/missing.kt")
	assert.Error(t, err)
}

func TestParseFile(t *testing.T) {
	p, err := ParseFile(context.Background(), "testdata/add_five.kt", "testdata/maze.kt")
	require.NoError(t, err)
	require.Len(t, p.Funcs, 2)
	assert.Len(t, p.Funcs[0].Body, 3)
}
