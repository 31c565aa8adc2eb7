// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luaucode

import (
	"errors"
	"slices"

	"zb.256lights.llc/luaudec/internal/bytereader"
	"zb.256lights.llc/luaudec/internal/decerr"
)

// UnmarshalBinary decodes a chunk whose opcode bytes are already logical opcodes.
// On failure, c is left unchanged.
func (c *Chunk) UnmarshalBinary(data []byte) error {
	c2, err := Unmarshal(data, nil)
	if err != nil {
		return err
	}
	*c = *c2
	return nil
}

// Unmarshal decodes a chunk,
// passing every instruction's opcode byte through dec.
// A nil dec is equivalent to [IdentityDecoder].
//
// Unmarshal never returns a partial chunk:
// any error (always a [*decerr.Error]) means the returned chunk is nil.
func Unmarshal(data []byte, dec OpcodeDecoder) (*Chunk, error) {
	if dec == nil {
		dec = IdentityDecoder{}
	}
	r := &chunkReader{
		Reader: bytereader.New(data),
		dec:    dec,
		fn:     decerr.Unknown,
	}
	c := new(Chunk)
	if err := r.loadHeader(c); err != nil {
		return nil, err
	}

	n, err := r.readCount("symbol table size")
	if err != nil {
		return nil, err
	}
	c.Symbols = make([]string, n)
	for i := range c.Symbols {
		c.Symbols[i], err = r.ReadString()
		if err != nil {
			return nil, r.wrap("symbol table", err).WithIndex("symbol", i)
		}
	}
	r.symbols = c.Symbols
	if IsTyped(int(c.Version)) && c.TypesVersion >= 3 {
		if c.UserdataTypes, err = r.loadUserdataTypes(); err != nil {
			return nil, err
		}
	}

	n, err = r.readCount("function count")
	if err != nil {
		return nil, err
	}
	r.numFunctions = n
	c.Functions = make([]*Function, n)
	for i := range c.Functions {
		r.fn = i
		f := new(Function)
		if err := r.loadFunction(f); err != nil {
			return nil, err
		}
		c.Functions[i] = f
	}
	r.fn = decerr.Unknown

	start := r.Pos()
	main, err := r.ReadVarUint()
	if err != nil {
		return nil, r.wrap("main function", err)
	}
	if main >= uint64(len(c.Functions)) {
		return nil, r.errorf(decerr.MalformedData, start,
			"main function %d out of range (%d functions)", main, len(c.Functions))
	}
	c.Main = int(main)
	if r.Len() > 0 {
		return nil, r.errorf(decerr.MalformedData, r.Pos(), "%d bytes of trailing data", r.Len())
	}
	return c, nil
}

type chunkReader struct {
	*bytereader.Reader
	dec          OpcodeDecoder
	version      uint8
	symbols      []string
	numFunctions int
	// fn is the index of the function being loaded or [decerr.Unknown].
	fn int
}

func (r *chunkReader) errorf(kind decerr.Kind, offset int, format string, args ...any) *decerr.Error {
	e := decerr.AtOffset(decerr.StageDeserialize, kind, offset, format, args...)
	e.Function = r.fn
	return e
}

func (r *chunkReader) wrap(field string, err error) *decerr.Error {
	e := decerr.Within(decerr.StageDeserialize, field, err)
	if r.fn != decerr.Unknown {
		e = e.InFunction(r.fn)
	}
	return e
}

func (r *chunkReader) loadHeader(c *Chunk) error {
	version, err := r.ReadUint8()
	if err != nil {
		return r.wrap("version", err)
	}
	if version == 0 {
		msg, _ := r.ReadBytes(r.Len())
		return r.errorf(decerr.MalformedData, 0, "chunk holds a compile error: %s", msg)
	}
	if !IsSupported(int(version)) {
		return r.errorf(decerr.UnsupportedVersion, 0,
			"version %d (supported versions are %d through %d)", version, MinVersion, MaxVersion)
	}
	c.Version = version
	r.version = version
	if IsTyped(int(version)) {
		start := r.Pos()
		tv, err := r.ReadUint8()
		if err != nil {
			return r.wrap("types version", err)
		}
		if tv < MinTypesVersion || tv > MaxTypesVersion {
			return r.errorf(decerr.UnsupportedVersion, start,
				"types version %d (supported versions are %d through %d)", tv, MinTypesVersion, MaxTypesVersion)
		}
		c.TypesVersion = tv
	}
	return nil
}

// loadUserdataTypes reads the zero-terminated userdata type remapping table.
// Each entry is a 1-based type index followed by a symbol reference.
func (r *chunkReader) loadUserdataTypes() ([]UserdataType, error) {
	var types []UserdataType
	for {
		index, err := r.ReadUint8()
		if err != nil {
			return nil, r.wrap("userdata types", err)
		}
		if index == 0 {
			return types, nil
		}
		start := r.Pos()
		name, ok, err := r.readSymbolRef("userdata type name")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, r.errorf(decerr.MalformedData, start, "userdata type %d has no name", index)
		}
		types = append(types, UserdataType{Index: int(index) - 1, Name: name})
	}
}

// readCount reads the size of a list whose elements each occupy at least one byte.
func (r *chunkReader) readCount(field string) (int, error) {
	start := r.Pos()
	n, err := r.ReadVarUint()
	if err != nil {
		return 0, r.wrap(field, err)
	}
	if n > uint64(r.Len()) {
		return 0, r.errorf(decerr.UnexpectedEndOfData, start,
			"%s: %d exceeds remaining %d bytes", field, n, r.Len())
	}
	return int(n), nil
}

// readSymbolRef reads a 1-based symbol table reference.
// Zero means no string.
func (r *chunkReader) readSymbolRef(field string) (_ string, ok bool, err error) {
	start := r.Pos()
	i, err := r.ReadVarUint()
	if err != nil {
		return "", false, r.wrap(field, err)
	}
	if i == 0 {
		return "", false, nil
	}
	if i > uint64(len(r.symbols)) {
		return "", false, r.errorf(decerr.MalformedData, start,
			"%s: symbol %d out of range (%d symbols)", field, i, len(r.symbols)).WithIndex("symbol", int(i-1))
	}
	return r.symbols[i-1], true, nil
}

// readFunctionRef reads a reference to an earlier function prototype.
func (r *chunkReader) readFunctionRef(field string) (int, error) {
	start := r.Pos()
	i, err := r.ReadVarUint()
	if err != nil {
		return 0, r.wrap(field, err)
	}
	if i >= uint64(r.numFunctions) {
		return 0, r.errorf(decerr.MalformedData, start,
			"%s: function %d out of range (%d functions)", field, i, r.numFunctions)
	}
	if int(i) >= r.fn {
		return 0, r.errorf(decerr.MalformedData, start,
			"%s: function %d does not precede its parent", field, i)
	}
	return int(i), nil
}

func (r *chunkReader) loadFunction(f *Function) error {
	var err error
	if f.MaxStackSize, err = r.ReadUint8(); err != nil {
		return r.wrap("max stack size", err)
	}
	if f.NumParams, err = r.ReadUint8(); err != nil {
		return r.wrap("number of parameters", err)
	}
	if f.NumUpvalues, err = r.ReadUint8(); err != nil {
		return r.wrap("number of upvalues", err)
	}
	if f.IsVararg, err = r.ReadBool(); err != nil {
		return r.wrap("is vararg", err)
	}
	if IsTyped(int(r.version)) {
		if f.Flags, err = r.ReadUint8(); err != nil {
			return r.wrap("flags", err)
		}
		n, err := r.readCount("type info size")
		if err != nil {
			return err
		}
		typeInfo, err := r.ReadBytes(n)
		if err != nil {
			return r.wrap("type info", err)
		}
		if n > 0 {
			f.TypeInfo = slices.Clone(typeInfo)
		}
	}

	if err := r.loadCode(f); err != nil {
		return err
	}
	if err := r.loadConstants(f); err != nil {
		return err
	}

	n, err := r.readCount("child function count")
	if err != nil {
		return err
	}
	f.Children = make([]int, n)
	for i := range f.Children {
		f.Children[i], err = r.readFunctionRef("child functions")
		if err != nil {
			return err
		}
	}

	lineDefined, err := r.ReadVarUint()
	if err != nil {
		return r.wrap("line defined", err)
	}
	f.LineDefined = int(min(lineDefined, 1<<31-1))
	if f.DebugName, _, err = r.readSymbolRef("debug name"); err != nil {
		return err
	}

	hasLineInfo, err := r.ReadBool()
	if err != nil {
		return r.wrap("has line info", err)
	}
	if hasLineInfo {
		f.LineInfo, err = loadLineInfo(r.Reader, len(f.Code))
		if err != nil {
			return r.wrap("", err)
		}
	}

	hasDebugInfo, err := r.ReadBool()
	if err != nil {
		return r.wrap("has debug info", err)
	}
	if hasDebugInfo {
		if err := r.loadDebugInfo(f); err != nil {
			return err
		}
	}
	return nil
}

func (r *chunkReader) loadCode(f *Function) error {
	start := r.Pos()
	n, err := r.ReadVarUint()
	if err != nil {
		return r.wrap("instruction count", err)
	}
	if n > uint64(r.Len()/4) {
		return r.errorf(decerr.UnexpectedEndOfData, start,
			"instruction count %d exceeds remaining %d bytes", n, r.Len())
	}
	f.Code = make([]Instruction, n)
	for pc := 0; pc < len(f.Code); {
		start := r.Pos()
		word, err := r.ReadUint32()
		if err != nil {
			return r.wrap("instructions", err)
		}
		word = DecodeWord32(r.dec, word)
		i := Instruction(word)
		op := i.OpCode()
		if !op.IsValid() {
			e := r.errorf(decerr.MalformedData, start, "unknown opcode %#02x", uint8(op))
			e.PC = pc
			return e
		}
		f.Code[pc] = i
		pc++
		if op.HasAux() {
			if pc >= len(f.Code) {
				e := r.errorf(decerr.MalformedData, start, "%v missing auxiliary word", op)
				e.PC = pc - 1
				return e
			}
			aux, err := r.ReadUint32()
			if err != nil {
				return r.wrap("instructions", err)
			}
			f.Code[pc] = Instruction(aux)
			pc++
		}
	}
	return nil
}

func (r *chunkReader) loadConstants(f *Function) error {
	n, err := r.readCount("constant count")
	if err != nil {
		return err
	}
	f.Constants = make([]Constant, n)
	for i := range f.Constants {
		f.Constants[i], err = r.loadConstant(f.Constants[:i])
		if err != nil {
			var e *decerr.Error
			if errors.As(err, &e) {
				return e.WithIndex("constant", i)
			}
			return err
		}
	}
	return nil
}

// loadConstant reads a single constant.
// prior is the part of the pool already read.
func (r *chunkReader) loadConstant(prior []Constant) (Constant, error) {
	start := r.Pos()
	tag, err := r.ReadUint8()
	if err != nil {
		return Constant{}, r.wrap("constant tag", err)
	}
	switch kind := ConstantKind(tag); kind {
	case ConstantNil:
		return Constant{}, nil
	case ConstantBoolean:
		b, err := r.ReadBool()
		if err != nil {
			return Constant{}, r.wrap("boolean constant", err)
		}
		return BoolConstant(b), nil
	case ConstantNumber:
		x, err := r.ReadFloat64()
		if err != nil {
			return Constant{}, r.wrap("number constant", err)
		}
		return NumberConstant(x), nil
	case ConstantString:
		refStart := r.Pos()
		i, err := r.ReadVarUint()
		if err != nil {
			return Constant{}, r.wrap("string constant", err)
		}
		if i == 0 || i > uint64(len(r.symbols)) {
			return Constant{}, r.errorf(decerr.MalformedData, refStart,
				"string constant: symbol %d out of range (%d symbols)", i, len(r.symbols))
		}
		return StringConstant(int(i - 1)), nil
	case ConstantImport:
		word, err := r.ReadUint32()
		if err != nil {
			return Constant{}, r.wrap("import constant", err)
		}
		path := decodeImport(word)
		if len(path) == 0 {
			return Constant{}, r.errorf(decerr.MalformedData, start+1, "import constant: empty path")
		}
		for _, k := range path {
			if k >= len(prior) {
				return Constant{}, r.errorf(decerr.MalformedData, start+1,
					"import constant: path element refers to constant %d which is not defined yet", k)
			}
			if prior[k].Kind() != ConstantString {
				return Constant{}, r.errorf(decerr.MalformedData, start+1,
					"import constant: path element refers to %v constant %d", prior[k].Kind(), k)
			}
		}
		return Constant{kind: ConstantImport, ints: path}, nil
	case ConstantTable:
		n, err := r.readCount("table constant size")
		if err != nil {
			return Constant{}, err
		}
		keys := make([]int, n)
		for j := range keys {
			keyStart := r.Pos()
			k, err := r.ReadVarUint()
			if err != nil {
				return Constant{}, r.wrap("table constant", err)
			}
			if k >= uint64(len(prior)) {
				return Constant{}, r.errorf(decerr.MalformedData, keyStart,
					"table constant: key %d refers to constant %d which is not defined yet", j, k)
			}
			keys[j] = int(k)
		}
		return Constant{kind: ConstantTable, ints: keys}, nil
	case ConstantClosure:
		i, err := r.readFunctionRef("closure constant")
		if err != nil {
			return Constant{}, err
		}
		return ClosureConstant(i), nil
	case ConstantVector:
		var v [4]float32
		for j := range v {
			v[j], err = r.ReadFloat32()
			if err != nil {
				return Constant{}, r.wrap("vector constant", err)
			}
		}
		return Constant{kind: ConstantVector, vec: v}, nil
	default:
		return Constant{}, r.errorf(decerr.MalformedData, start, "unknown constant tag %#02x", tag)
	}
}

func (r *chunkReader) loadDebugInfo(f *Function) error {
	n, err := r.readCount("local variable count")
	if err != nil {
		return err
	}
	f.LocalVariables = make([]LocalVariable, n)
	for i := range f.LocalVariables {
		v := &f.LocalVariables[i]
		if v.Name, _, err = r.readSymbolRef("local variable name"); err != nil {
			return err
		}
		startPC, err := r.ReadVarUint()
		if err != nil {
			return r.wrap("local variable start pc", err)
		}
		endPC, err := r.ReadVarUint()
		if err != nil {
			return r.wrap("local variable end pc", err)
		}
		v.StartPC = int(min(startPC, uint64(len(f.Code))))
		v.EndPC = int(min(endPC, uint64(len(f.Code))))
		if v.Register, err = r.ReadUint8(); err != nil {
			return r.wrap("local variable register", err)
		}
	}

	start := r.Pos()
	n, err = r.readCount("upvalue name count")
	if err != nil {
		return err
	}
	if n != 0 && n != int(f.NumUpvalues) {
		return r.errorf(decerr.MalformedData, start,
			"upvalue names: length (%d) does not match upvalue count (%d)", n, f.NumUpvalues)
	}
	if n > 0 {
		f.UpvalueNames = make([]string, n)
	}
	for i := range f.UpvalueNames {
		if f.UpvalueNames[i], _, err = r.readSymbolRef("upvalue name"); err != nil {
			return err
		}
	}
	return nil
}
