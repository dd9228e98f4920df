package upload

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"
)

// DefaultMaxFormBytes bounds the non-file fields of one request.
const DefaultMaxFormBytes = 1 << 20

// Received is the outcome of reading one multipart request.
type Received struct {
	Files  []*IncomingFile
	Values map[string][]string
}

// Receiver streams multipart file parts to disk. Every part passes the gate
// before a byte is written, and bytes land in the temp directory until the
// whole part is within limits.
type Receiver struct {
	policy       *Policy
	maxFormBytes int64
}

func NewReceiver(policy *Policy) *Receiver {
	return &Receiver{policy: policy, maxFormBytes: DefaultMaxFormBytes}
}

// Receive reads req for target t. A request that is not multipart yields no
// files. On error nothing the receiver wrote is left behind.
func (r *Receiver) Receive(req *http.Request, t Target) (_ *Received, err error) {
	out := &Received{Values: map[string][]string{}}

	mr, err := req.MultipartReader()
	if errors.Is(err, http.ErrNotMultipart) {
		return out, nil
	}
	if err != nil {
		return nil, errMalformed(err)
	}

	defer func() {
		if err != nil {
			var paths []string
			for _, f := range out.Files {
				paths = append(paths, f.Path)
			}
			_ = DeleteFiles(paths...)
		}
	}()

	gate := NewGate(t.Validation())
	formBytes := r.maxFormBytes

	for {
		part, perr := mr.NextPart()
		if perr == io.EOF {
			return out, nil
		}
		if perr != nil {
			return nil, readError(perr, t)
		}

		name := part.FormName()
		if name == "" {
			part.Close()
			continue
		}

		if part.FileName() == "" {
			n, verr := readValue(part, formBytes)
			part.Close()
			if verr != nil {
				return nil, readError(verr, t)
			}
			if int64(len(n)) > formBytes {
				return nil, errFieldTooLarge(r.maxFormBytes)
			}
			formBytes -= int64(len(n))
			out.Values[name] = append(out.Values[name], n)
			continue
		}

		if name != t.FieldName {
			part.Close()
			return nil, errUnexpectedField(name)
		}
		if len(out.Files) >= t.MaxCount {
			part.Close()
			return nil, errTooManyFiles(t.MaxCount)
		}

		f, ferr := r.store(part, t, gate)
		part.Close()
		if ferr != nil {
			return nil, ferr
		}
		out.Files = append(out.Files, f)
	}
}

func (r *Receiver) store(part *multipart.Part, t Target, gate *Gate) (*IncomingFile, error) {
	br := bufio.NewReaderSize(part, SniffLen)
	head, err := br.Peek(SniffLen)
	if err != nil && err != io.EOF && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, readError(err, t)
	}

	f := &IncomingFile{
		FieldName:    part.FormName(),
		OriginalName: filepath.Base(part.FileName()),
		MimeType:     part.Header.Get("Content-Type"),
		DetectedType: Sniff(head),
	}
	if err := gate.Validate(f); err != nil {
		return nil, err
	}

	f.Filename = r.policy.GenerateFilename(f.FieldName, f.OriginalName)
	f.Destination = r.policy.ResolveDestination(t)

	tmp := filepath.Join(r.policy.TempDir(), f.Filename+".part")
	size, sum, err := writePart(tmp, br, gate.MaxFileSize())
	if err != nil {
		_ = DeleteFiles(tmp)
		return nil, readError(err, t)
	}
	f.Size = size
	f.Checksum = sum
	if err := gate.Validate(f); err != nil {
		_ = DeleteFiles(tmp)
		return nil, err
	}

	f.Path = filepath.Join(f.Destination, f.Filename)
	if err := os.Rename(tmp, f.Path); err != nil {
		_ = DeleteFiles(tmp)
		return nil, errProcessing(fmt.Errorf("move upload into place: %w", err))
	}
	return f, nil
}

var errPartTooLarge = errors.New("part exceeds size limit")

// writePart copies src into a new file at path, stopping one byte past limit.
func writePart(path string, src io.Reader, limit int64) (int64, string, error) {
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, "", fmt.Errorf("create %s: %w", path, err)
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		dst.Close()
		return 0, "", err
	}

	if limit > 0 {
		src = io.LimitReader(src, limit+1)
	}
	n, err := io.Copy(io.MultiWriter(dst, h), src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, "", err
	}
	if limit > 0 && n > limit {
		return n, "", errPartTooLarge
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

func readValue(part *multipart.Part, remaining int64) (string, error) {
	b, err := io.ReadAll(io.LimitReader(part, remaining+1))
	return string(b), err
}

// readError maps a failure while reading the request body to the upload
// error contract.
func readError(err error, t Target) error {
	var ue *UploadError
	if errors.As(err, &ue) {
		return ue
	}
	var mbe *http.MaxBytesError
	if errors.Is(err, errPartTooLarge) || errors.As(err, &mbe) {
		return errFileTooLarge(t.MaxFileSize)
	}
	var pe *os.PathError
	if errors.As(err, &pe) {
		return errProcessing(err)
	}
	return errMalformed(err)
}
