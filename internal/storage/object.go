package storage

import (
	"github.com/rather-labs/move-bytecode-to-wasm/internal/runtime"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
)

// PeekOwner reads a UID's current-owner record (§3.7, the ownerOfSlot
// indirection) without touching the object's data-root slot: used to
// check who owns an object, or whether it's shared/frozen, before
// deciding how to re-derive the two-round data-root key.
func (c *Codec) PeekOwner(uidPtr uint32, sc runtime.Scratch, e *wasmbin.Emitter) uint32 {
	key := c.ownerOfSlot(uidPtr, sc, e)
	out := sc.NextI32()
	e.I32Const(32).Call(c.Lib.AllocFuncID()).LocalSet(out)
	e.LocalGet(key).LocalGet(out).Call(c.Host.StorageLoadBytes32())
	return out
}

// LoadObject reads an object's struct data given its UID: it resolves
// the UID's current owner via PeekOwner, derives the data-root slot from
// (uid, owner), and decodes st's fields from there. Traps if the owner
// record is unset, since an object with no recorded owner was never
// stored (or has since been deleted).
func (c *Codec) LoadObject(st *types.Struct, uidPtr uint32, sc runtime.Scratch, e *wasmbin.Emitter) (uint32, error) {
	owner := c.PeekOwner(uidPtr, sc, e)
	e.LocalGet(owner).Call(c.Lib.IsZero32())
	e.If(wasmbin.BlockType{Empty: true})
	e.Call(c.Lib.OverflowTrapFunc())
	e.End()

	root := c.rootObjectSlot(uidPtr, owner, sc, e)
	return c.DecodeStruct(st, root, sc, e)
}

// StoreObject writes a newly created or mutated object's fields to its
// owner's data-root slot and records ownerKeyPtr as the UID's current
// owner, so a later LoadObject/PeekOwner for the same UID finds it.
// ownerKeyPtr is a plain 32-byte address for an owned object, or one of
// the reserved shared/frozen owner keys (§3.7) for a shared or frozen
// object — callers substitute those in place of a real address exactly
// as rootObjectSlot's own "owner" parameter is generic about what it
// derives against.
func (c *Codec) StoreObject(st *types.Struct, valueLocal, uidPtr, ownerKeyPtr uint32, sc runtime.Scratch, e *wasmbin.Emitter) error {
	ownerSlot := c.ownerOfSlot(uidPtr, sc, e)
	e.LocalGet(ownerSlot).LocalGet(ownerKeyPtr).Call(c.Host.StorageCacheBytes32())

	root := c.rootObjectSlot(uidPtr, ownerKeyPtr, sc, e)
	return c.EncodeStruct(st, valueLocal, root, sc, e)
}

// TransferOwnership moves an existing object to newOwnerKeyPtr: since an
// object's data-root slot depends on its owner (§3.7), the move decodes
// the object under its current owner, clears every slot that owner's
// root occupied, and re-encodes it under the new owner, finally updating
// the UID's owner-of record via StoreObject.
func (c *Codec) TransferOwnership(st *types.Struct, uidPtr, newOwnerKeyPtr uint32, sc runtime.Scratch, e *wasmbin.Emitter) error {
	oldOwner := c.PeekOwner(uidPtr, sc, e)
	oldRoot := c.rootObjectSlot(uidPtr, oldOwner, sc, e)
	value, err := c.DecodeStruct(st, oldRoot, sc, e)
	if err != nil {
		return err
	}
	if err := c.clearObjectSlots(st, oldRoot, sc, e); err != nil {
		return err
	}
	return c.StoreObject(st, value, uidPtr, newOwnerKeyPtr, sc, e)
}

// clearObjectSlots zeroes every slot EncodeStruct would have written for
// st starting at root, in the same sequence. Handle fields' own header
// slots are zeroed but the dynamic child slots they indirect through
// (vector elements, byte chunks) are left as orphaned, unreachable bytes
// under the old owner's derivation rather than walked and individually
// cleared — recorded as an Open Decision, since nothing can reach them
// again once the parent's new data-root lives under a different owner.
func (c *Codec) clearObjectSlots(st *types.Struct, root uint32, sc runtime.Scratch, e *wasmbin.Emitter) error {
	zero := sc.NextI32()
	e.I32Const(32).Call(c.Lib.AllocFuncID()).LocalSet(zero)
	for w := uint32(0); w < 32; w += 8 {
		e.LocalGet(zero).I64Const(0).Store(wasmbin.OpcodeI64Store, w)
	}
	cur := &cursor{key: c.copyKey(root, sc, e)}
	return c.clearFieldsInto(st.Fields, zero, cur, sc, e)
}

func (c *Codec) clearFieldsInto(fields []types.Field, zero uint32, cur *cursor, sc runtime.Scratch, e *wasmbin.Emitter) error {
	for _, f := range fields {
		if err := c.clearOneField(f.Type, zero, cur, sc, e); err != nil {
			return err
		}
	}
	return nil
}

func (c *Codec) clearOneField(t types.Type, zero uint32, cur *cursor, sc runtime.Scratch, e *wasmbin.Emitter) error {
	if isStorageHandle(t) {
		if cur.used > 0 {
			if err := c.advanceSlotKey(cur.key, 1, e); err != nil {
				return err
			}
			cur.used = 0
		}
		e.LocalGet(cur.key).LocalGet(zero).Call(c.Host.StorageCacheBytes32())
		return c.advanceSlotKey(cur.key, 1, e)
	}
	switch t.Kind {
	case types.KindStruct, types.KindGenericStructInstance:
		st, err := resolveStruct(c.Ctx, t)
		if err != nil {
			return err
		}
		return c.clearFieldsInto(st.Fields, zero, cur, sc, e)
	case types.KindEnum, types.KindGenericEnumInstance:
		en, err := resolveEnum(c.Ctx, t)
		if err != nil {
			return err
		}
		if cur.used > 0 {
			if err := c.advanceSlotKey(cur.key, 1, e); err != nil {
				return err
			}
			cur.used = 0
		}
		span := (en.StorageEncodedLen() + 31) / 32
		for i := 0; i < span; i++ {
			e.LocalGet(cur.key).LocalGet(zero).Call(c.Host.StorageCacheBytes32())
			if i < span-1 {
				if err := c.advanceSlotKey(cur.key, 1, e); err != nil {
					return err
				}
			}
		}
		return c.advanceSlotKey(cur.key, 1, e)
	default:
		size := t.StorageFieldSize()
		if cur.used == 0 {
			e.LocalGet(cur.key).LocalGet(zero).Call(c.Host.StorageCacheBytes32())
		}
		if cur.used+size > 32 {
			if err := c.advanceSlotKey(cur.key, 1, e); err != nil {
				return err
			}
			cur.used = 0
			e.LocalGet(cur.key).LocalGet(zero).Call(c.Host.StorageCacheBytes32())
		}
		cur.used += size
		return nil
	}
}

// DynamicFieldSlot derives the storage slot a dynamic field named by
// nameHashPtr (a 32-byte hash of the field's name) and attached to object
// parentUIDPtr lives at (§3.7): the field's name hash stands in for a
// UID and the parent's own UID stands in for an owner, reusing
// rootObjectSlot/ObjectSlot's two-round derivation rather than a
// separate scheme, since a dynamic field only ever needs to be reachable
// from its parent and never independently transferred.
func (c *Codec) DynamicFieldSlot(parentUIDPtr, nameHashPtr uint32, sc runtime.Scratch, e *wasmbin.Emitter) uint32 {
	return c.rootObjectSlot(nameHashPtr, parentUIDPtr, sc, e)
}
