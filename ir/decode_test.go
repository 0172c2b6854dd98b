package ir

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProgram = `
entries: [main]
functions:
  - name: kill
    vars:
      - {name: p, ptr: true}
    params: [0]
    blocks:
      - stmts:
          - {op: drop, place: 0*, span: {file: t.mc, line: 11, col: 5}}
  - name: main
    span: {file: t.mc, line: 1, col: 1}
    vars:
      - {name: x, drop: true, decl: {file: t.mc, line: 2, col: 9}}
      - {name: p, ptr: true}
      - {name: v}
    ret: 2
    blocks:
      - succs: [1]
        stmts:
          - {op: ref, dst: "1", src: "0", span: {file: t.mc, line: 3, col: 5}}
          - {op: call, callee: kill, args: [{place: "1", mode: copy}], span: {file: t.mc, line: 4, col: 5}}
      - stmts:
          - {op: copy, dst: "2", src: 1*, span: {file: t.mc, line: 5, col: 5}}
          - {op: move, dst: "2", const: true, span: {file: t.mc, line: 6, col: 5}}
`

func TestDecode(t *testing.T) {
	prog, err := Decode(strings.NewReader(sampleProgram))
	require.NoError(t, err)

	assert.Equal(t, []string{"main"}, prog.Entries)
	require.NotNil(t, prog.Func("main"))
	require.NotNil(t, prog.Func("kill"))
	assert.Nil(t, prog.Func("other"))

	main := prog.Func("main")
	assert.True(t, main.HasRet)
	assert.Equal(t, VarID(2), main.Ret)
	assert.True(t, main.Vars[0].NeedsDrop)
	assert.True(t, main.Vars[1].PointerLike)
	require.Len(t, main.Blocks, 2)

	call, ok := main.Blocks[0].Stmts[1].(*Call)
	require.True(t, ok)
	assert.Equal(t, "kill", call.Callee)
	require.Len(t, call.Args, 1)
	assert.Equal(t, Copy, call.Args[0].Mode)

	konst, ok := main.Blocks[1].Stmts[1].(*Assign)
	require.True(t, ok)
	assert.True(t, konst.Const)

	drop, ok := prog.Func("kill").Blocks[0].Stmts[0].(*Drop)
	require.True(t, ok)
	assert.Equal(t, Place{Var: 0, Path: Path{{Kind: Deref}}}, drop.Place)

	for name, f := range prog.Funcs {
		assert.NoError(t, Validate(f), name)
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown field": `functions: [{name: f, bogus: 1, blocks: []}]`,
		"unknown op":    `functions: [{name: f, blocks: [{stmts: [{op: frob}]}]}]`,
		"bad place":     `functions: [{name: f, blocks: [{stmts: [{op: drop, place: "x"}]}]}]`,
		"duplicate function": `functions:
  - {name: f, blocks: []}
  - {name: f, blocks: []}`,
	}
	for name, src := range cases {
		_, err := Decode(strings.NewReader(src))
		assert.Error(t, err, name)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	prog, err := Decode(strings.NewReader(sampleProgram))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, prog))

	again, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, prog, again)
}
