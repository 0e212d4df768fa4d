package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"facerank/internal/util"

	"github.com/go-chi/chi"
)

const maxBodySize = 64 << 10

func urlID(r *http.Request, name string) (util.UUIDAsBlob, error) {
	id, err := util.ParseUUIDAsBlob(chi.URLParam(r, name))
	if err != nil {
		return util.UUIDAsBlob{}, badRequest(fmt.Sprintf("invalid %s: %s", name, err))
	}

	return id, nil
}

func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(dst); err != nil {
		return badRequest(fmt.Sprintf("invalid JSON body: %s", err))
	}

	return nil
}

// queryInt returns the integer value of a query parameter, def if it is absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	str := r.URL.Query().Get(name)
	if str == "" {
		return def, nil
	}

	v, err := strconv.Atoi(str)
	if err != nil {
		return 0, badRequest(fmt.Sprintf("invalid %s: %q is not an integer", name, str))
	}

	return v, nil
}
