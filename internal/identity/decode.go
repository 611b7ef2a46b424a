package identity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"attestor/internal/platform/upstream"
)

// upstreamName labels identity directory errors.
const upstreamName = "identity-directory"

// userWire is the directory's user object. Only the fields we consume are listed.
type userWire struct {
	FID               json.Number `json:"fid"`
	Username          string      `json:"username"`
	CustodyAddress    string      `json:"custody_address"`
	FollowerCount     int         `json:"follower_count"`
	FollowingCount    int         `json:"following_count"`
	CastCount         *int        `json:"cast_count"`
	PostCount         *int        `json:"post_count"`
	RegisteredAt      flexTime    `json:"registered_at"`
	CreatedAt         flexTime    `json:"created_at"`
	VerifiedAddresses struct {
		EthAddresses []string `json:"eth_addresses"`
	} `json:"verified_addresses"`
	Verifications []string `json:"verifications"`
}

// resultWire covers {"result": {"user": {...}}} and {"result": {"users": [...]}}.
type resultWire struct {
	User  *userWire  `json:"user"`
	Users []userWire `json:"users"`
}

// Decode maps every known directory response shape to Records, in response
// order. An empty slice means no identity. Any other shape is reported as a
// contract mismatch rather than guessed at. Only the first user must carry a
// usable fid; later candidates without one are dropped since the resolver
// never picks them.
//
// Known shapes:
//
//	{"0xabc...": [user, ...]}
//	{"users": [user, ...]}
//	{"result": {"user": user}} / {"result": {"users": [user, ...]}}
func Decode(body []byte, wallet common.Address) ([]Record, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, mismatch("empty body", nil)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, mismatch("response is not a JSON object", err)
	}

	var users []userWire
	switch {
	case top["users"] != nil:
		if err := json.Unmarshal(top["users"], &users); err != nil {
			return nil, mismatch("users is not a list", err)
		}
	case top["result"] != nil:
		var res resultWire
		if err := json.Unmarshal(top["result"], &res); err != nil {
			return nil, mismatch("result is not an object", err)
		}
		if res.User != nil {
			users = append(users, *res.User)
		}
		users = append(users, res.Users...)
	default:
		var err error
		users, err = decodeAddressKeyed(top, wallet)
		if err != nil {
			return nil, err
		}
	}

	records := make([]Record, 0, len(users))
	for i := range users {
		rec, err := users[i].toRecord(wallet)
		if err != nil {
			if i == 0 {
				return nil, err
			}
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// decodeAddressKeyed handles the address-keyed map. Only the queried wallet's
// entry is read; keys compare case-insensitively.
func decodeAddressKeyed(top map[string]json.RawMessage, wallet common.Address) ([]userWire, error) {
	if len(top) == 0 {
		return nil, nil
	}
	for key, raw := range top {
		if !common.IsHexAddress(key) {
			return nil, mismatch(fmt.Sprintf("unexpected top-level key %q", key), nil)
		}
		if common.HexToAddress(key) != wallet {
			continue
		}
		var users []userWire
		if err := json.Unmarshal(raw, &users); err != nil {
			return nil, mismatch("address entry is not a list", err)
		}
		return users, nil
	}
	return nil, nil
}

func (u *userWire) toRecord(wallet common.Address) (Record, error) {
	fid, err := strconv.ParseUint(u.FID.String(), 10, 64)
	if err != nil || fid == 0 {
		return Record{}, mismatch(fmt.Sprintf("user has no usable fid %q", u.FID.String()), err)
	}

	rec := Record{
		FID:       fid,
		Username:  u.Username,
		Wallet:    wallet,
		Followers: u.FollowerCount,
		Following: u.FollowingCount,
		CreatedAt: u.RegisteredAt.Time,
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = u.CreatedAt.Time
	}
	switch {
	case u.CastCount != nil:
		rec.Posts = *u.CastCount
	case u.PostCount != nil:
		rec.Posts = *u.PostCount
	}
	if common.IsHexAddress(u.CustodyAddress) {
		rec.PrimaryAddress = common.HexToAddress(u.CustodyAddress)
	}

	seen := make(map[common.Address]struct{})
	for _, raw := range append(u.VerifiedAddresses.EthAddresses, u.Verifications...) {
		if !common.IsHexAddress(raw) {
			continue
		}
		addr := common.HexToAddress(raw)
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		rec.VerifiedAddresses = append(rec.VerifiedAddresses, addr)
	}
	return rec, nil
}

func mismatch(msg string, err error) error {
	return upstream.NewError(upstream.ErrorContractMismatch, upstreamName, msg, err)
}

// flexTime accepts RFC 3339 strings, unix seconds or unix milliseconds, and null.
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		if parsed, err := time.Parse(time.RFC3339Nano, unq); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
		s = unq
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("unrecognised timestamp %q", s)
	}
	// Anything past year 5138 in seconds is really milliseconds.
	if n > 1e11 {
		t.Time = time.UnixMilli(n).UTC()
	} else {
		t.Time = time.Unix(n, 0).UTC()
	}
	return nil
}
