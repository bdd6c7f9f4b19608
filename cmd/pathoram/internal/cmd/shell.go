package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	pathoram "github.com/etclab/pathoram-client"
)

const help = `- store <id> <data>  (1)
	Store data under a new non-negative integer id. The data is the rest
	of the line and must be exactly the configured block size in bytes.
- retrieve <id>      (2)
	Print the data stored under id.
- delete <id>        (3)
	Remove the data stored under id.
- audit
	Decrypt the whole tree and check its invariants.
- help
	Display this message.
- exit, q            (9)
	Close the session.`

// shell executes one command line at a time against a client.
type shell struct {
	client *pathoram.Client
	out    io.Writer
}

func newShell(client *pathoram.Client, out io.Writer) *shell {
	return &shell{client: client, out: out}
}

// exec runs line. It reports quit for exit commands and returns an error
// only when the session cannot continue.
func (sh *shell) exec(line string) (quit bool, err error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return false, nil
	}

	switch args[0] {
	case "exit", "q", "9":
		sh.println("[+] Exiting.")
		return true, nil
	case "help", "h":
		sh.println(help)
		return false, nil
	case "store", "1":
		// The payload is the rest of the line after the id, spaces included.
		rest := strings.TrimLeft(line, " \t")[len(args[0]):]
		idArg, data, ok := strings.Cut(strings.TrimLeft(rest, " \t"), " ")
		if !ok || data == "" {
			sh.println("[!] Usage: store <id> <data>")
			return false, nil
		}
		id, ok := sh.parseID(idArg)
		if !ok {
			return false, nil
		}
		return false, sh.report(sh.client.Store(id, []byte(data)), "Stored block "+idArg+".")
	case "retrieve", "2":
		if len(args) != 2 {
			sh.println("[!] Usage: retrieve <id>")
			return false, nil
		}
		id, ok := sh.parseID(args[1])
		if !ok {
			return false, nil
		}
		data, err := sh.client.Retrieve(id)
		return false, sh.report(err, "Data: "+string(data))
	case "delete", "3":
		if len(args) != 2 {
			sh.println("[!] Usage: delete <id>")
			return false, nil
		}
		id, ok := sh.parseID(args[1])
		if !ok {
			return false, nil
		}
		return false, sh.report(sh.client.Delete(id), "Deleted block "+args[1]+".")
	case "audit":
		r, err := sh.client.Audit()
		return false, sh.report(err, fmt.Sprintf("%d real and %d dummy slots in %d buckets; real blocks per level %v; fullest bucket holds %d.",
			r.RealBlocks, r.DummyBlocks, r.Buckets, r.LevelOccupancy, r.MaxBucketLoad))
	default:
		sh.println(`[!] Unrecognized command: ` + args[0] + `. Type "help" for more information.`)
		return false, nil
	}
}

func (sh *shell) parseID(s string) (int, bool) {
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		sh.println("[!] Block id must be a non-negative integer.")
		return 0, false
	}
	return id, true
}

// report prints the outcome of an operation. Fatal errors are returned.
func (sh *shell) report(err error, success string) error {
	switch {
	case err == nil:
		sh.println("[+] " + success)
	case pathoram.IsFatal(err):
		sh.println("[x] " + err.Error())
		return err
	case errors.Is(err, pathoram.ErrInvalidDataSize):
		sh.println(fmt.Sprintf("[!] Data must be exactly %d bytes.", sh.client.BlockSize()))
	case errors.Is(err, pathoram.ErrDuplicateID):
		sh.println("[!] Id is already in use; choose a different one.")
	case errors.Is(err, pathoram.ErrNotFound):
		sh.println("[!] Id is not in storage.")
	default:
		sh.println("[!] " + err.Error())
	}
	return nil
}

func (sh *shell) println(s string) {
	fmt.Fprintln(sh.out, s)
}
