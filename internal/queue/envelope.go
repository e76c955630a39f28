/**
 * @description
 * Fanout envelope handling for the price-update stream.
 * The publisher side fans batches out through a pub/sub topic whose delivery
 * wrapper looks like {"Type": "...", "MessageId": "...", "Message": "<payload>"}.
 * Depending on the fanout configuration the queue may carry either that
 * wrapper or the raw batch JSON, so extraction tolerates both and never
 * rejects a message for format reasons alone.
 *
 * @dependencies
 * - standard "encoding/json"
 */

package queue

import (
	"encoding/json"
	"errors"
)

// ErrEmptyBody is returned when a message carries no payload at all. This is
// the one unrecoverable format error; callers drop the message instead of
// retrying something that can never succeed.
var ErrEmptyBody = errors.New("empty message body")

// ExtractPayload unwraps the fanout envelope to get the original payload.
//
// Decision order:
//  1. nil/empty body → ErrEmptyBody (poison).
//  2. body parses as JSON with a non-empty "Message" field → that field.
//  3. anything else (raw batch JSON, or not JSON at all) → the body unchanged.
func ExtractPayload(body []byte) ([]byte, error) {
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}

	var env struct {
		Type    string `json:"Type"`
		Message string `json:"Message"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		// Not valid JSON — treat the body as the raw payload.
		return body, nil
	}

	if env.Message == "" {
		// Valid JSON but no usable Message field; the body is the payload.
		return body, nil
	}

	return []byte(env.Message), nil
}
