// Copyright 2026 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

/*
Package mu provides helpers for converting types to and from the TPM 1.2 wire
format.

Every integer on the wire is big-endian. The package understands fixed size
values (unsigned integers, byte arrays and structures composed entirely of
them, via encoding/binary) and the RawBytes type for unsized byte sequences.
Unlike TPM 2.0 structures, TPM 1.2 command and response blobs in this module
have no variable unions or sized structures, so no reflection-driven machinery
beyond encoding/binary is required.
*/
package mu
