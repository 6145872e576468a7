// Package wasmtest assembles small WebAssembly modules for tests.
package wasmtest

// Value types.
const (
	I32 byte = 0x7f
	I64 byte = 0x7e
)

// Sig is a function signature.
type Sig struct {
	Params  []byte
	Results []byte
}

// Import is a function imported from the env module.
type Import struct {
	Name string
	Sig  Sig
}

// Func is an exported function. Code is the body without the final end.
type Func struct {
	Name string
	Sig  Sig
	Code []byte
}

// Memory layout of Module. Data is preloaded at offset 0.
const (
	KeyPtr    = 0  // Key
	ValuePtr  = 8  // Value
	EventPtr  = 16 // Event
	CallerPtr = 64
	SelfPtr   = 96
	ReadPtr   = 512
	AllocPtr  = 1024
)

var (
	Key   = []byte("k")
	Value = []byte("*")
	Event = []byte("hello")
)

// env import indices in Module.
const (
	getCaller = iota
	getContractAddress
	getBlockHeight
	getBalance
	transfer
	emitEvent
	storageRead
	storageWrite
	storageDelete
)

var envImports = []Import{
	{"get_caller", Sig{[]byte{I32}, nil}},
	{"get_contract_address", Sig{[]byte{I32}, nil}},
	{"get_block_height", Sig{nil, []byte{I64}}},
	{"get_balance", Sig{[]byte{I32}, []byte{I64}}},
	{"transfer", Sig{[]byte{I32, I64}, []byte{I32}}},
	{"emit_event", Sig{[]byte{I32, I32}, nil}},
	{"storage_read", Sig{[]byte{I32, I32, I32, I32}, []byte{I32}}},
	{"storage_write", Sig{[]byte{I32, I32, I32, I32}, nil}},
	{"storage_delete", Sig{[]byte{I32, I32}, nil}},
}

// Module imports every env host function and exports one page of memory and:
//
//	height() i64            get_block_height()
//	add_height(i64) i64     its argument plus the height
//	oob() i32               loads from address 65536
//	allocate(i32) i32       always AllocPtr
//	store()                 writes Key = Value
//	poke()                  writes Key+"\x00" = Value then traps
//	bad_write()             storage_write with a key at the last byte of memory
//	load(cap i32) i32       storage_read of Key into ReadPtr with out_cap cap
//	erase()                 deletes Key
//	emit()                  emits Event
//	who()                   writes the caller to CallerPtr and itself to SelfPtr
//	self_balance() i64      its own balance
//	pay(i64) i32            transfers the amount to the caller
//	spin()                  loops forever
//	spoil() i32             store, emit and pay 1, then loads from address 65536
func Module() []byte {
	storeKey := cat(i32c(KeyPtr), i32c(int32(len(Key))), i32c(ValuePtr), i32c(int32(len(Value))), call(storageWrite))
	emit := cat(i32c(EventPtr), i32c(int32(len(Event))), call(emitEvent))
	oob := cat(i32c(65536), []byte{0x28, 0x02, 0x00})

	data := make([]byte, EventPtr+len(Event))
	copy(data[KeyPtr:], Key)
	copy(data[ValuePtr:], Value)
	copy(data[EventPtr:], Event)

	return Build(envImports, []Func{
		{"height", Sig{nil, []byte{I64}}, call(getBlockHeight)},
		{"add_height", Sig{[]byte{I64}, []byte{I64}}, cat(local(0), call(getBlockHeight), []byte{0x7c})},
		{"oob", Sig{nil, []byte{I32}}, oob},
		{"allocate", Sig{[]byte{I32}, []byte{I32}}, i32c(AllocPtr)},
		{"store", Sig{}, storeKey},
		{"poke", Sig{}, cat(i32c(KeyPtr), i32c(2), i32c(ValuePtr), i32c(1), call(storageWrite), []byte{0x00})},
		{"bad_write", Sig{}, cat(i32c(65535), i32c(8), i32c(0), i32c(0), call(storageWrite))},
		{"load", Sig{[]byte{I32}, []byte{I32}}, cat(i32c(KeyPtr), i32c(int32(len(Key))), i32c(ReadPtr), local(0), call(storageRead))},
		{"erase", Sig{}, cat(i32c(KeyPtr), i32c(int32(len(Key))), call(storageDelete))},
		{"emit", Sig{}, emit},
		{"who", Sig{}, cat(i32c(CallerPtr), call(getCaller), i32c(SelfPtr), call(getContractAddress))},
		{"self_balance", Sig{nil, []byte{I64}}, cat(i32c(SelfPtr), call(getContractAddress), i32c(SelfPtr), call(getBalance))},
		{"pay", Sig{[]byte{I64}, []byte{I32}}, cat(i32c(CallerPtr), call(getCaller), i32c(CallerPtr), local(0), call(transfer))},
		{"spin", Sig{}, []byte{0x03, 0x40, 0x0c, 0x00, 0x0b}},
		{"spoil", Sig{nil, []byte{I32}}, cat(
			storeKey,
			emit,
			i32c(CallerPtr), call(getCaller),
			i32c(CallerPtr), i64c(1), call(transfer), []byte{0x1a},
			oob,
		)},
	}, data)
}

// Mismatched imports get_block_height as (i32) -> () and exports run().
func Mismatched() []byte {
	return Build(
		[]Import{{"get_block_height", Sig{[]byte{I32}, nil}}},
		[]Func{{"run", Sig{}, cat(i32c(0), call(0))}},
		nil,
	)
}

// Build assembles a module with one exported page of memory. data is loaded
// at offset 0.
func Build(imports []Import, funcs []Func, data []byte) []byte {
	var (
		types   [][]byte
		typeIdx = make(map[string]uint32)
	)
	typeOf := func(s Sig) uint32 {
		enc := cat([]byte{0x60}, uleb(uint32(len(s.Params))), s.Params, uleb(uint32(len(s.Results))), s.Results)
		if idx, ok := typeIdx[string(enc)]; ok {
			return idx
		}
		idx := uint32(len(types))
		typeIdx[string(enc)] = idx
		types = append(types, enc)
		return idx
	}

	var imps, decls, exps, bodies [][]byte
	for _, imp := range imports {
		imps = append(imps, cat(name("env"), name(imp.Name), []byte{0x00}, uleb(typeOf(imp.Sig))))
	}
	exps = append(exps, cat(name("memory"), []byte{0x02, 0x00}))
	for i, fn := range funcs {
		decls = append(decls, uleb(typeOf(fn.Sig)))
		exps = append(exps, cat(name(fn.Name), []byte{0x00}, uleb(uint32(len(imports)+i))))
		body := cat([]byte{0x00}, fn.Code, []byte{0x0b}) // no locals
		bodies = append(bodies, cat(uleb(uint32(len(body))), body))
	}

	mod := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	mod = append(mod, section(0x01, vec(types))...)
	if len(imps) > 0 {
		mod = append(mod, section(0x02, vec(imps))...)
	}
	mod = append(mod, section(0x03, vec(decls))...)
	mod = append(mod, section(0x05, []byte{0x01, 0x00, 0x01})...)
	mod = append(mod, section(0x07, vec(exps))...)
	mod = append(mod, section(0x0a, vec(bodies))...)
	if len(data) > 0 {
		seg := cat([]byte{0x00}, i32c(0), []byte{0x0b}, uleb(uint32(len(data))), data)
		mod = append(mod, section(0x0b, vec([][]byte{seg}))...)
	}
	return mod
}

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func section(id byte, body []byte) []byte {
	return cat([]byte{id}, uleb(uint32(len(body))), body)
}

func vec(items [][]byte) []byte {
	return cat(uleb(uint32(len(items))), cat(items...))
}

func name(s string) []byte {
	return cat(uleb(uint32(len(s))), []byte(s))
}

func call(idx uint32) []byte {
	return cat([]byte{0x10}, uleb(idx))
}

func local(idx uint32) []byte {
	return cat([]byte{0x20}, uleb(idx))
}

func i32c(v int32) []byte {
	return cat([]byte{0x41}, sleb(int64(v)))
}

func i64c(v int64) []byte {
	return cat([]byte{0x42}, sleb(v))
}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
