package host

import "github.com/lasso-embedded/host/pkg/errno"

// Errno is the host's error taxonomy. It is the only channel a
// client ever sees a failure on: the integer value is what gets
// serialized as the final field of a tiny reply. Aliased
// from pkg/errno so pkg/command can share the same type without
// importing this package (which itself imports pkg/command).
type Errno = errno.Errno

const (
	ErrNone       = errno.None
	ErrEOPNOTSUPP = errno.EOPNOTSUPP
	ErrEINVAL     = errno.EINVAL
	ErrEFAULT     = errno.EFAULT
	ErrEACCES     = errno.EACCES
	ErrENOTSUP    = errno.ENOTSUP
	ErrECANCELED  = errno.ECANCELED
	ErrEBUSY      = errno.EBUSY
	ErrENOMEM     = errno.ENOMEM
	ErrEOVERFLOW  = errno.EOVERFLOW
	ErrENOSPC     = errno.ENOSPC
)
