package codegen

import (
	"strconv"

	"tml/internal/ast"
	"tml/internal/types"
)

// collectionMethod is dispatch layer 2: fixed arrays, slices and the
// runtime-backed List / Map containers. Container elements cross the
// runtime boundary as pointers; values spill through a slot on the way
// in and load on the way out.
func (fs *funcState) collectionMethod(e *ast.Expr, recvSem types.TypeID, t types.Type) (string, string, bool, error) {
	switch t.Kind {
	case types.KindArray:
		if e.Method.Method == "len" {
			if _, _, err := fs.genExpr(e.Method.Receiver); err != nil {
				return "", "", true, err
			}
			return strconv.FormatUint(uint64(t.Count), 10), "i64", true, nil
		}
	case types.KindSlice:
		return fs.sliceMethod(e, t)
	case types.KindNamed:
		switch t.Name {
		case "List":
			return fs.listMethod(e, t)
		case "Map", "HashMap":
			return fs.mapMethod(e, t)
		}
	}
	return "", "", false, nil
}

func (fs *funcState) sliceMethod(e *ast.Expr, t types.Type) (string, string, bool, error) {
	m := e.Method
	switch m.Method {
	case "len":
		val, _, err := fs.genExpr(m.Receiver)
		if err != nil {
			return "", "", true, err
		}
		reg := fs.nextReg()
		fs.line("  %s = extractvalue { ptr, i64 } %s, 1", reg, val)
		return reg, "i64", true, nil
	case "get":
		val, _, err := fs.genExpr(m.Receiver)
		if err != nil {
			return "", "", true, err
		}
		idx, idxLL, err := fs.genExprArg(m, 0, e)
		if err != nil {
			return "", "", true, err
		}
		idx, _ = fs.coerceValue(idx, idxLL, "i64", fs.g.Types.Builtins().I64)
		data := fs.nextReg()
		fs.line("  %s = extractvalue { ptr, i64 } %s, 0", data, val)
		elemLL := fs.g.llvmValueType(t.Elem)
		gep := fs.nextReg()
		fs.line("  %s = getelementptr %s, ptr %s, i64 %s", gep, elemLL, data, idx)
		reg := fs.nextReg()
		fs.line("  %s = load %s, ptr %s", reg, elemLL, gep)
		return reg, elemLL, true, nil
	}
	return "", "", false, nil
}

func (fs *funcState) listMethod(e *ast.Expr, t types.Type) (string, string, bool, error) {
	m := e.Method
	elem := fs.g.Types.Builtins().I64
	if len(t.Args) > 0 {
		elem = t.Args[0]
	}
	handle := func() (string, error) {
		return fs.containerHandle(m.Receiver)
	}
	switch m.Method {
	case "len":
		h, err := handle()
		if err != nil {
			return "", "", true, err
		}
		reg := fs.nextReg()
		fs.line("  %s = call i64 @list_len(ptr %s)", reg, h)
		return reg, "i64", true, nil
	case "clear":
		h, err := handle()
		if err != nil {
			return "", "", true, err
		}
		fs.line("  call void @list_clear(ptr %s)", h)
		return "0", "i1", true, nil
	case "push":
		h, err := handle()
		if err != nil {
			return "", "", true, err
		}
		box, err := fs.boxValue(m, 0, e, elem)
		if err != nil {
			return "", "", true, err
		}
		fs.line("  call void @list_push(ptr %s, ptr %s)", h, box)
		return "0", "i1", true, nil
	case "set":
		h, err := handle()
		if err != nil {
			return "", "", true, err
		}
		idx, idxLL, err := fs.genExprArg(m, 0, e)
		if err != nil {
			return "", "", true, err
		}
		idx, _ = fs.coerceValue(idx, idxLL, "i64", fs.g.Types.Builtins().I64)
		box, err := fs.boxValue(m, 1, e, elem)
		if err != nil {
			return "", "", true, err
		}
		fs.line("  call void @list_set(ptr %s, i64 %s, ptr %s)", h, idx, box)
		return "0", "i1", true, nil
	case "get", "pop":
		h, err := handle()
		if err != nil {
			return "", "", true, err
		}
		var box string
		if m.Method == "get" {
			idx, idxLL, err := fs.genExprArg(m, 0, e)
			if err != nil {
				return "", "", true, err
			}
			idx, _ = fs.coerceValue(idx, idxLL, "i64", fs.g.Types.Builtins().I64)
			box = fs.nextReg()
			fs.line("  %s = call ptr @list_get(ptr %s, i64 %s)", box, h, idx)
		} else {
			box = fs.nextReg()
			fs.line("  %s = call ptr @list_pop(ptr %s)", box, h)
		}
		return fs.unboxValue(box, elem)
	}
	return "", "", false, nil
}

func (fs *funcState) mapMethod(e *ast.Expr, t types.Type) (string, string, bool, error) {
	m := e.Method
	key := fs.g.Types.Builtins().Str
	val := fs.g.Types.Builtins().I64
	if len(t.Args) > 0 {
		key = t.Args[0]
	}
	if len(t.Args) > 1 {
		val = t.Args[1]
	}
	h, err := fs.containerHandle(m.Receiver)
	if err != nil {
		return "", "", true, err
	}
	switch m.Method {
	case "len":
		reg := fs.nextReg()
		fs.line("  %s = call i64 @map_len(ptr %s)", reg, h)
		return reg, "i64", true, nil
	case "insert":
		kBox, err := fs.boxValue(m, 0, e, key)
		if err != nil {
			return "", "", true, err
		}
		vBox, err := fs.boxValue(m, 1, e, val)
		if err != nil {
			return "", "", true, err
		}
		fs.line("  call void @map_insert(ptr %s, ptr %s, ptr %s)", h, kBox, vBox)
		return "0", "i1", true, nil
	case "get":
		kBox, err := fs.boxValue(m, 0, e, key)
		if err != nil {
			return "", "", true, err
		}
		box := fs.nextReg()
		fs.line("  %s = call ptr @map_get(ptr %s, ptr %s)", box, h, kBox)
		return fs.unboxValue(box, val)
	case "contains", "remove":
		kBox, err := fs.boxValue(m, 0, e, key)
		if err != nil {
			return "", "", true, err
		}
		fn := "map_contains"
		if m.Method == "remove" {
			fn = "map_remove"
		}
		reg := fs.nextReg()
		fs.line("  %s = call i1 @%s(ptr %s, ptr %s)", reg, fn, h, kBox)
		return reg, "i1", true, nil
	}
	return "", "", false, nil
}

// containerHandle loads the opaque runtime handle stored in the receiver's
// first slot.
func (fs *funcState) containerHandle(recv *ast.Expr) (string, error) {
	sem := fs.g.InferType(fs, recv)
	t, ok := fs.g.Types.Lookup(sem)
	if ok && (t.Kind == types.KindRef || t.Kind == types.KindPtr) {
		ptr, _, err := fs.genExpr(recv)
		if err != nil {
			return "", err
		}
		reg := fs.nextReg()
		fs.line("  %s = load ptr, ptr %s", reg, ptr)
		return reg, nil
	}
	if ptr, _, _, ok := fs.genAddr(recv); ok {
		reg := fs.nextReg()
		fs.line("  %s = load ptr, ptr %s", reg, ptr)
		return reg, nil
	}
	val, llty, err := fs.genExpr(recv)
	if err != nil {
		return "", err
	}
	if llty == "ptr" {
		return val, nil
	}
	reg := fs.nextReg()
	fs.line("  %s = extractvalue %s %s, 0", reg, llty, val)
	return reg, nil
}

// boxValue passes argument i across the runtime boundary: pointers go as
// is, everything else spills to a slot whose address is handed over.
func (fs *funcState) boxValue(m *ast.MethodCallExpr, i int, e *ast.Expr, elem types.TypeID) (string, error) {
	val, have, err := fs.genExprArg(m, i, e)
	if err != nil {
		return "", err
	}
	want := fs.g.llvmValueType(elem)
	val, have = fs.coerceValue(val, have, want, elem)
	if have == "ptr" {
		return val, nil
	}
	slot := fs.nextReg()
	fs.line("  %s = alloca %s", slot, have)
	fs.line("  store %s %s, ptr %s", have, val, slot)
	return slot, nil
}

// unboxValue reads a runtime-returned pointer back into a typed value.
func (fs *funcState) unboxValue(box string, elem types.TypeID) (string, string, bool, error) {
	llty := fs.g.llvmValueType(elem)
	if llty == "ptr" {
		return box, "ptr", true, nil
	}
	reg := fs.nextReg()
	fs.line("  %s = load %s, ptr %s", reg, llty, box)
	return reg, llty, true, nil
}
