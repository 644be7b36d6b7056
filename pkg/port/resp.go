// Serves a cache adapter over the Redis serialization protocol so any Redis client can talk to it. Every
// command goes through the adapter's public operation surface, which means attached interceptors apply to
// protocol traffic exactly as they do to in-process callers.

package port

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/fezfez/stash/pkg/adapter"
	"github.com/fezfez/stash/pkg/scan"
	"github.com/tidwall/redcon"
)

const RespOk = "OK"

var address = flag.String("address", ":6380", "The ip:port to listen on for the Redis protocol.")

// respCommand represents a client command with its arguments.
type respCommand struct {
	command string
	args    []string
}

// respOutput conforms to a real Redis server output on the supported commands.
type respOutput struct {
	closeConnection bool    // Closes the connection if true.
	writeNil        bool    // Writes a nil value if true.
	err             *string // Error to return if set.
	writeInt        *int    // Writes an integer value if set.
	writeStrings    *[]string
	writeString     string // Writes a string value if set.
}

func closeConnection(msg string) respOutput {
	return respOutput{writeString: msg, closeConnection: true}
}

func writeNil() respOutput {
	return respOutput{writeNil: true}
}

func writeInt(i int) respOutput {
	return respOutput{writeInt: &i}
}

func writeStrings(values []string) respOutput {
	return respOutput{writeStrings: &values}
}

func writeString(s string) respOutput {
	return respOutput{writeString: s}
}

func writeError(err error) respOutput {
	msg := "ERR " + err.Error()
	return respOutput{err: &msg}
}

func wrongArity(command string) respOutput {
	return writeError(fmt.Errorf("wrong number of arguments for '%s' command", command))
}

type respHandler struct { // Implements the redcon command callback.
	cache *adapter.Adapter
}

// newRespHandler creates a new respHandler.
func newRespHandler(cache *adapter.Adapter) (*respHandler, error) {
	if cache == nil {
		return nil, errors.New("expected a non-nil cache adapter")
	}
	return &respHandler{cache: cache}, nil
}

func (rh *respHandler) handle(cmd respCommand) respOutput {
	switch strings.ToUpper(cmd.command) {
	case "PING":
		return writeString("PONG")
	case "QUIT":
		return closeConnection(RespOk)
	case "SET":
		return rh.handleSet(cmd.args)
	case "GET":
		if len(cmd.args) != 1 {
			return wrongArity("get")
		}
		value, found, err := rh.cache.GetItem(cmd.args[0])
		if err != nil {
			return writeError(err)
		}
		if !found {
			return writeNil()
		}
		return writeString(formatValue(value))
	case "DEL":
		if len(cmd.args) < 1 {
			return wrongArity("del")
		}
		failed, err := rh.cache.RemoveItems(cmd.args)
		if err != nil {
			return writeError(err)
		}
		return writeInt(len(cmd.args) - len(failed))
	case "EXISTS":
		if len(cmd.args) < 1 {
			return wrongArity("exists")
		}
		found, err := rh.cache.HasItems(cmd.args)
		if err != nil {
			return writeError(err)
		}
		return writeInt(len(found))
	case "INCR", "DECR":
		if len(cmd.args) != 1 {
			return wrongArity(strings.ToLower(cmd.command))
		}
		return rh.handleCounter(cmd.args[0], 1 /*delta*/, strings.EqualFold(cmd.command, "DECR"))
	case "INCRBY", "DECRBY":
		if len(cmd.args) != 2 {
			return wrongArity(strings.ToLower(cmd.command))
		}
		delta, err := strconv.ParseInt(cmd.args[1], 10, 64)
		if err != nil {
			return writeError(errors.New("value is not an integer or out of range"))
		}
		return rh.handleCounter(cmd.args[0], delta, strings.EqualFold(cmd.command, "DECRBY"))
	case "TOUCH":
		if len(cmd.args) < 1 {
			return wrongArity("touch")
		}
		failed, err := rh.cache.TouchItems(cmd.args)
		if err != nil {
			return writeError(err)
		}
		return writeInt(len(cmd.args) - len(failed))
	case "TTL":
		if len(cmd.args) != 1 {
			return wrongArity("ttl")
		}
		return rh.handleTTL(cmd.args[0])
	case "KEYS":
		if len(cmd.args) != 1 {
			return wrongArity("keys")
		}
		keys, err := rh.cache.Keys()
		if err != nil {
			return writeError(err)
		}
		return writeStrings(slices.Collect(scan.MatchGlob(cmd.args[0], slices.Values(keys))))
	case "FLUSHALL":
		if err := rh.cache.Flush(); err != nil {
			return writeError(err)
		}
		return writeString(RespOk)
	default:
		return writeError(fmt.Errorf("unknown command '%s'", cmd.command))
	}
}

// handleSet implements SET key value [NX|XX]. The per-command expiry options of real Redis are not
// supported; the item TTL comes from the adapter options.
func (rh *respHandler) handleSet(args []string) respOutput {
	if len(args) < 2 || len(args) > 3 {
		return wrongArity("set")
	}
	key, value := args[0], args[1]
	var stored bool
	var err error
	if len(args) == 3 {
		switch strings.ToUpper(args[2]) {
		case "NX":
			stored, err = rh.cache.AddItem(key, value)
		case "XX":
			stored, err = rh.cache.ReplaceItem(key, value)
		default:
			return writeError(errors.New("syntax error"))
		}
	} else {
		stored, err = rh.cache.SetItem(key, value)
	}
	if err != nil {
		return writeError(err)
	}
	if !stored { // Redis replies nil when an NX/XX condition wasn't met.
		return writeNil()
	}
	return writeString(RespOk)
}

// handleCounter implements INCR / INCRBY / DECR / DECRBY. Unlike the adapter primitive, Redis counters
// treat a missing key as zero, so a soft failure falls back to seeding the key.
func (rh *respHandler) handleCounter(key string, delta int64, negate bool) respOutput {
	if negate {
		delta = -delta
	}
	newValue, ok, err := rh.cache.IncrementItem(key, delta)
	if err != nil {
		return writeError(err)
	}
	if !ok {
		if _, err := rh.cache.SetItem(key, delta); err != nil {
			return writeError(err)
		}
		newValue = delta
	}
	return writeInt(int(newValue))
}

// handleTTL implements TTL with the standard sentinel replies: -2 for a missing key, -1 for a key without
// expiry.
func (rh *respHandler) handleTTL(key string) respOutput {
	metadata, found, err := rh.cache.GetMetadata(key)
	if err != nil {
		return writeError(err)
	}
	if !found {
		return writeInt(-2)
	}
	if metadata.ExpiresAt.IsZero() {
		return writeInt(-1)
	}
	remaining := time.Until(metadata.ExpiresAt)
	if remaining < 0 {
		return writeInt(-2)
	}
	return writeInt(int((remaining + time.Second - 1) / time.Second))
}

// formatValue renders a stored value the way a string-typed cache would.
func formatValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// RunRespServer starts a Redis protocol server on the --address flag, backed by the given cache adapter.
// It blocks until ctx is cancelled or the server fails.
func RunRespServer(ctx context.Context, cache *adapter.Adapter) error {
	if *address == "" {
		return errors.New("expected a non-empty --address flag")
	}

	respHandler, err := newRespHandler(cache)
	if err != nil {
		return fmt.Errorf("failed to create a new resp handler: %w", err)
	}

	respServer := redcon.NewServerNetwork("tcp" /*net*/, *address,
		/*handler*/ func(conn redcon.Conn, cmd redcon.Command) {
			// Convert redcon.Command to respCommand.
			command := respCommand{command: string(cmd.Args[0]), args: make([]string, len(cmd.Args)-1)}
			for i := 1; i < len(cmd.Args); i++ {
				command.args[i-1] = string(cmd.Args[i])
			}
			writeOutput(conn, respHandler.handle(command))
		},
		/*accept*/ func(conn redcon.Conn) bool {
			return true // Accept all connections.
		},
		/*close*/ func(conn redcon.Conn, err error) {},
	)

	serverErrSignal := make(chan error, 1)
	go func() {
		if err := respServer.ListenAndServe(); err != nil {
			serverErrSignal <- err
		}
		close(serverErrSignal)
	}()

	select {
	case <-ctx.Done():
		if err := respServer.Close(); err != nil {
			return fmt.Errorf("failed to close the resp server: %w", err)
		}
	case err := <-serverErrSignal:
		return fmt.Errorf("resp server stopped unexpectedly: %w", err)
	}

	return nil // Exited with no errors.
}

// writeOutput renders a respOutput on the wire.
func writeOutput(conn redcon.Conn, output respOutput) {
	switch {
	case output.closeConnection:
		conn.WriteString(output.writeString)
		if err := conn.Close(); err != nil {
			slog.Error("Failed to close connection.", "error", err)
		}
	case output.err != nil:
		conn.WriteError(*output.err)
	case output.writeNil:
		conn.WriteNull()
	case output.writeInt != nil:
		conn.WriteInt(*output.writeInt)
	case output.writeStrings != nil:
		conn.WriteArray(len(*output.writeStrings))
		for _, value := range *output.writeStrings {
			conn.WriteBulkString(value)
		}
	default:
		conn.WriteString(output.writeString)
	}
}
