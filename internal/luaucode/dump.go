// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luaucode

import (
	"errors"
	"fmt"
	"slices"

	"zb.256lights.llc/luaudec/internal/bytereader"
)

// MarshalBinary encodes the chunk in the format read by [*Chunk.UnmarshalBinary].
func (c *Chunk) MarshalBinary() ([]byte, error) {
	return c.AppendBinary(nil, nil)
}

// AppendBinary appends the binary encoding of the chunk to dst,
// passing every opcode through enc.
// A nil enc is equivalent to [IdentityDecoder].
// Names used in debug information that are missing from [Chunk.Symbols]
// are added to the end of the encoded symbol table.
func (c *Chunk) AppendBinary(dst []byte, enc OpcodeEncoder) ([]byte, error) {
	if !IsSupported(int(c.Version)) {
		return nil, fmt.Errorf("dump chunk: unsupported version %d", c.Version)
	}
	if c.Main < 0 || c.Main >= len(c.Functions) {
		return nil, fmt.Errorf("dump chunk: main function %d out of range", c.Main)
	}
	if enc == nil {
		enc = IdentityDecoder{}
	}
	w := &chunkWriter{
		enc:     enc,
		symbols: slices.Clip(c.Symbols),
		typed:   IsTyped(int(c.Version)),
	}
	w.collectNames(c)

	dst = append(dst, c.Version)
	if w.typed {
		dst = append(dst, c.TypesVersion)
	}
	dst = bytereader.AppendVarUint(dst, uint64(len(w.symbols)))
	for _, s := range w.symbols {
		dst = bytereader.AppendString(dst, s)
	}
	if w.typed && c.TypesVersion >= 3 {
		for _, ut := range c.UserdataTypes {
			if ut.Index < 0 || ut.Index >= 0xff || ut.Name == "" {
				return nil, fmt.Errorf("dump chunk: invalid userdata type %d %q", ut.Index, ut.Name)
			}
			dst = append(dst, byte(ut.Index+1))
			dst = w.appendSymbolRef(dst, ut.Name)
		}
		dst = append(dst, 0)
	}
	dst = bytereader.AppendVarUint(dst, uint64(len(c.Functions)))
	for i, f := range c.Functions {
		var err error
		dst, err = w.appendFunction(dst, f)
		if err != nil {
			return nil, fmt.Errorf("dump function %d: %v", i, err)
		}
	}
	dst = bytereader.AppendVarUint(dst, uint64(c.Main))
	return dst, nil
}

type chunkWriter struct {
	enc     OpcodeEncoder
	symbols []string
	index   map[string]int
	typed   bool
}

func (w *chunkWriter) collectNames(c *Chunk) {
	w.index = make(map[string]int, len(w.symbols))
	for i, s := range w.symbols {
		if _, exists := w.index[s]; !exists {
			w.index[s] = i
		}
	}
	add := func(s string) {
		if s == "" {
			return
		}
		if _, exists := w.index[s]; !exists {
			w.index[s] = len(w.symbols)
			w.symbols = append(w.symbols, s)
		}
	}
	for _, ut := range c.UserdataTypes {
		add(ut.Name)
	}
	for _, f := range c.Functions {
		add(f.DebugName)
		for _, v := range f.LocalVariables {
			add(v.Name)
		}
		for _, name := range f.UpvalueNames {
			add(name)
		}
	}
}

func (w *chunkWriter) appendSymbolRef(dst []byte, s string) []byte {
	if s == "" {
		return append(dst, 0)
	}
	return bytereader.AppendVarUint(dst, uint64(w.index[s]+1))
}

func (w *chunkWriter) appendFunction(dst []byte, f *Function) ([]byte, error) {
	dst = append(dst, f.MaxStackSize, f.NumParams, f.NumUpvalues)
	dst = bytereader.AppendBool(dst, f.IsVararg)
	if w.typed {
		dst = append(dst, f.Flags)
		dst = bytereader.AppendVarUint(dst, uint64(len(f.TypeInfo)))
		dst = append(dst, f.TypeInfo...)
	}

	dst = bytereader.AppendVarUint(dst, uint64(len(f.Code)))
	for pc := 0; pc < len(f.Code); pc++ {
		i := f.Code[pc]
		op := i.OpCode()
		dst = bytereader.AppendUint32(dst, uint32(i)&^0xff|uint32(w.enc.EncodeOpcode(op)))
		if op.HasAux() {
			pc++
			if pc >= len(f.Code) {
				return nil, fmt.Errorf("pc %d: %v missing auxiliary word", pc-1, op)
			}
			dst = bytereader.AppendUint32(dst, uint32(f.Code[pc]))
		}
	}

	dst = bytereader.AppendVarUint(dst, uint64(len(f.Constants)))
	for i, k := range f.Constants {
		var err error
		dst, err = appendConstant(dst, k)
		if err != nil {
			return nil, fmt.Errorf("constant %d: %v", i, err)
		}
	}

	dst = bytereader.AppendVarUint(dst, uint64(len(f.Children)))
	for _, child := range f.Children {
		dst = bytereader.AppendVarUint(dst, uint64(child))
	}
	dst = bytereader.AppendVarUint(dst, uint64(max(f.LineDefined, 0)))
	dst = w.appendSymbolRef(dst, f.DebugName)

	switch n := f.LineInfo.Len(); {
	case n == 0:
		dst = append(dst, 0)
	case n != len(f.Code):
		return nil, fmt.Errorf("line info has %d entries for %d instructions", n, len(f.Code))
	default:
		dst = append(dst, 1)
		dst = f.LineInfo.appendBinary(dst)
	}

	if f.LocalVariables == nil && f.UpvalueNames == nil {
		return append(dst, 0), nil
	}
	if len(f.UpvalueNames) != 0 && len(f.UpvalueNames) != int(f.NumUpvalues) {
		return nil, errors.New("upvalue names do not match upvalue count")
	}
	dst = append(dst, 1)
	dst = bytereader.AppendVarUint(dst, uint64(len(f.LocalVariables)))
	for _, v := range f.LocalVariables {
		dst = w.appendSymbolRef(dst, v.Name)
		dst = bytereader.AppendVarUint(dst, uint64(v.StartPC))
		dst = bytereader.AppendVarUint(dst, uint64(v.EndPC))
		dst = append(dst, v.Register)
	}
	dst = bytereader.AppendVarUint(dst, uint64(len(f.UpvalueNames)))
	for _, name := range f.UpvalueNames {
		dst = w.appendSymbolRef(dst, name)
	}
	return dst, nil
}

func appendConstant(dst []byte, k Constant) ([]byte, error) {
	dst = append(dst, byte(k.kind))
	switch k.kind {
	case ConstantNil:
	case ConstantBoolean:
		dst = bytereader.AppendBool(dst, k.n != 0)
	case ConstantNumber:
		dst = bytereader.AppendFloat64(dst, k.n)
	case ConstantString:
		dst = bytereader.AppendVarUint(dst, uint64(k.n)+1)
	case ConstantImport:
		word, err := encodeImport(k.ints)
		if err != nil {
			return nil, err
		}
		dst = bytereader.AppendUint32(dst, word)
	case ConstantTable:
		dst = bytereader.AppendVarUint(dst, uint64(len(k.ints)))
		for _, key := range k.ints {
			dst = bytereader.AppendVarUint(dst, uint64(key))
		}
	case ConstantClosure:
		dst = bytereader.AppendVarUint(dst, uint64(k.n))
	case ConstantVector:
		for _, x := range k.vec {
			dst = bytereader.AppendFloat32(dst, x)
		}
	default:
		return nil, fmt.Errorf("unknown constant kind %v", k.kind)
	}
	return dst, nil
}
