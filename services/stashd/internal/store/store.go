package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eauxxs/rgb-std/pkg/containers"
	"github.com/eauxxs/rgb-std/pkg/contract"
	"github.com/eauxxs/rgb-std/pkg/iface"
	"github.com/eauxxs/rgb-std/pkg/inventory"
)

// Store keeps the stash in Postgres. Content blobs live as jsonb keyed
// by their content ids; the opout index is maintained on every fold so
// output and terminal queries stay single selects.
type Store struct{ DB *pgxpool.Pool }

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

var _ inventory.Stash = (*Store)(nil)

const ddl = `
CREATE TABLE IF NOT EXISTS schemas(
  schema_id text PRIMARY KEY,
  body jsonb NOT NULL
);
CREATE TABLE IF NOT EXISTS ifaces(
  iface_id text PRIMARY KEY,
  name text NOT NULL,
  body jsonb NOT NULL
);
CREATE INDEX IF NOT EXISTS ifaces_name_idx ON ifaces(name);
CREATE TABLE IF NOT EXISTS iface_impls(
  impl_id text PRIMARY KEY,
  schema_id text NOT NULL,
  iface_id text NOT NULL,
  body jsonb NOT NULL
);
CREATE INDEX IF NOT EXISTS iface_impls_schema_idx ON iface_impls(schema_id);
CREATE TABLE IF NOT EXISTS geneses(
  contract_id text PRIMARY KEY,
  schema_id text NOT NULL,
  body jsonb NOT NULL
);
CREATE INDEX IF NOT EXISTS geneses_schema_idx ON geneses(schema_id);
CREATE TABLE IF NOT EXISTS suppls(
  contract_id text PRIMARY KEY,
  body jsonb NOT NULL
);
CREATE TABLE IF NOT EXISTS content_sigs(
  content_id text PRIMARY KEY,
  body jsonb NOT NULL
);
CREATE TABLE IF NOT EXISTS seal_secrets(
  secret text PRIMARY KEY,
  body jsonb NOT NULL
);
CREATE TABLE IF NOT EXISTS witnesses(
  witness_id text PRIMARY KEY,
  anchor jsonb NOT NULL
);
CREATE TABLE IF NOT EXISTS bundles(
  bundle_id text PRIMARY KEY,
  witness_id text NOT NULL REFERENCES witnesses(witness_id),
  contract_id text NOT NULL,
  body jsonb NOT NULL
);
CREATE INDEX IF NOT EXISTS bundles_witness_idx ON bundles(witness_id);
CREATE TABLE IF NOT EXISTS bundle_ops(
  op_id text PRIMARY KEY,
  bundle_id text NOT NULL REFERENCES bundles(bundle_id)
);
CREATE TABLE IF NOT EXISTS opout_index(
  contract_id text NOT NULL,
  opout text NOT NULL,
  output_key text,
  secret text NOT NULL,
  is_public boolean NOT NULL DEFAULT false,
  state jsonb NOT NULL,
  PRIMARY KEY (contract_id, opout)
);
CREATE INDEX IF NOT EXISTS opout_index_output_idx ON opout_index(output_key);
CREATE INDEX IF NOT EXISTS opout_index_secret_idx ON opout_index(secret);
`

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, ddl)
	return err
}

func notFound(kind, id string) *inventory.NotFoundError {
	return &inventory.NotFoundError{Kind: kind, ID: id}
}

func (s *Store) Schema(ctx context.Context, id contract.SchemaID) (iface.SchemaIfaces, error) {
	var out iface.SchemaIfaces
	var body []byte
	err := s.DB.QueryRow(ctx, `SELECT body FROM schemas WHERE schema_id=$1`, id.String()).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return out, notFound("schema", id.String())
	}
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out.Schema); err != nil {
		return out, fmt.Errorf("decode schema %s: %w", id, err)
	}

	out.Impls = map[contract.IfaceID]iface.IfaceImpl{}
	out.Ifaces = map[contract.IfaceID]iface.Iface{}
	rows, err := s.DB.Query(ctx, `
SELECT ii.body, i.body
FROM iface_impls ii
JOIN ifaces i ON i.iface_id=ii.iface_id
WHERE ii.schema_id=$1
`, id.String())
	if err != nil {
		return out, err
	}
	defer rows.Close()
	for rows.Next() {
		var implBody, ifaceBody []byte
		if err := rows.Scan(&implBody, &ifaceBody); err != nil {
			return out, err
		}
		var impl iface.IfaceImpl
		var ifc iface.Iface
		if err := json.Unmarshal(implBody, &impl); err != nil {
			return out, fmt.Errorf("decode iface impl: %w", err)
		}
		if err := json.Unmarshal(ifaceBody, &ifc); err != nil {
			return out, fmt.Errorf("decode iface: %w", err)
		}
		out.Impls[impl.IfaceID] = impl
		out.Ifaces[impl.IfaceID] = ifc
	}
	return out, rows.Err()
}

func (s *Store) Iface(ctx context.Context, id contract.IfaceID) (iface.Iface, error) {
	var ifc iface.Iface
	var body []byte
	err := s.DB.QueryRow(ctx, `SELECT body FROM ifaces WHERE iface_id=$1`, id.String()).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return ifc, notFound("iface", id.String())
	}
	if err != nil {
		return ifc, err
	}
	return ifc, json.Unmarshal(body, &ifc)
}

func (s *Store) IfaceByName(ctx context.Context, name string) (iface.Iface, error) {
	var ifc iface.Iface
	var body []byte
	err := s.DB.QueryRow(ctx, `SELECT body FROM ifaces WHERE name=$1 ORDER BY iface_id ASC LIMIT 1`, name).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return ifc, notFound("iface", name)
	}
	if err != nil {
		return ifc, err
	}
	return ifc, json.Unmarshal(body, &ifc)
}

func (s *Store) Genesis(ctx context.Context, id contract.ContractID) (contract.Genesis, error) {
	var genesis contract.Genesis
	var body []byte
	err := s.DB.QueryRow(ctx, `SELECT body FROM geneses WHERE contract_id=$1`, id.String()).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return genesis, notFound("contract", id.String())
	}
	if err != nil {
		return genesis, err
	}
	return genesis, json.Unmarshal(body, &genesis)
}

func (s *Store) ContractSchema(ctx context.Context, id contract.ContractID) (iface.SchemaIfaces, error) {
	var schemaID string
	err := s.DB.QueryRow(ctx, `SELECT schema_id FROM geneses WHERE contract_id=$1`, id.String()).Scan(&schemaID)
	if errors.Is(err, pgx.ErrNoRows) {
		return iface.SchemaIfaces{}, notFound("contract", id.String())
	}
	if err != nil {
		return iface.SchemaIfaces{}, err
	}
	var sid contract.SchemaID
	if err := sid.UnmarshalText([]byte(schemaID)); err != nil {
		return iface.SchemaIfaces{}, err
	}
	return s.Schema(ctx, sid)
}

func (s *Store) ContractSuppl(ctx context.Context, id contract.ContractID) (*iface.Supplement, error) {
	var body []byte
	err := s.DB.QueryRow(ctx, `SELECT body FROM suppls WHERE contract_id=$1`, id.String()).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var suppl iface.Supplement
	if err := json.Unmarshal(body, &suppl); err != nil {
		return nil, err
	}
	return &suppl, nil
}

func (s *Store) ContractIDsByIface(ctx context.Context, ifaceName string) ([]contract.ContractID, error) {
	rows, err := s.DB.Query(ctx, `
SELECT DISTINCT g.contract_id
FROM geneses g
JOIN iface_impls ii ON ii.schema_id=g.schema_id
JOIN ifaces i ON i.iface_id=ii.iface_id
WHERE i.name=$1
ORDER BY g.contract_id ASC
`, ifaceName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanContractIDs(rows)
}

func (s *Store) Transition(ctx context.Context, id contract.OpID) (contract.Transition, error) {
	bundleID, err := s.OpBundleID(ctx, id)
	if err != nil {
		return contract.Transition{}, err
	}
	bundle, _, _, err := s.bundle(ctx, bundleID)
	if err != nil {
		return contract.Transition{}, err
	}
	transition, ok := bundle.KnownTransitions[id]
	if !ok {
		return contract.Transition{}, notFound("transition", id.String())
	}
	return transition, nil
}

func (s *Store) OpBundleID(ctx context.Context, id contract.OpID) (contract.BundleID, error) {
	var raw string
	err := s.DB.QueryRow(ctx, `SELECT bundle_id FROM bundle_ops WHERE op_id=$1`, id.String()).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return contract.BundleID{}, notFound("operation", id.String())
	}
	if err != nil {
		return contract.BundleID{}, err
	}
	var bundleID contract.BundleID
	return bundleID, bundleID.UnmarshalText([]byte(raw))
}

func (s *Store) BundledWitness(ctx context.Context, id contract.BundleID) (containers.BundledWitness, error) {
	var bw containers.BundledWitness
	_, witnessID, _, err := s.bundle(ctx, id)
	if err != nil {
		return bw, err
	}

	var anchorBody []byte
	if err := s.DB.QueryRow(ctx, `SELECT anchor FROM witnesses WHERE witness_id=$1`, witnessID).Scan(&anchorBody); err != nil {
		return bw, err
	}
	if err := bw.WitnessID.UnmarshalText([]byte(witnessID)); err != nil {
		return bw, err
	}
	if err := json.Unmarshal(anchorBody, &bw.Anchor); err != nil {
		return bw, err
	}

	bw.Bundles = map[contract.ContractID]contract.TransitionBundle{}
	rows, err := s.DB.Query(ctx, `SELECT contract_id, body FROM bundles WHERE witness_id=$1`, witnessID)
	if err != nil {
		return bw, err
	}
	defer rows.Close()
	for rows.Next() {
		var rawContract string
		var body []byte
		if err := rows.Scan(&rawContract, &body); err != nil {
			return bw, err
		}
		var contractID contract.ContractID
		if err := contractID.UnmarshalText([]byte(rawContract)); err != nil {
			return bw, err
		}
		var bundle contract.TransitionBundle
		if err := json.Unmarshal(body, &bundle); err != nil {
			return bw, err
		}
		bw.Bundles[contractID] = bundle
	}
	return bw, rows.Err()
}

func (s *Store) bundle(ctx context.Context, id contract.BundleID) (contract.TransitionBundle, string, string, error) {
	var bundle contract.TransitionBundle
	var witnessID, contractID string
	var body []byte
	err := s.DB.QueryRow(ctx, `SELECT witness_id, contract_id, body FROM bundles WHERE bundle_id=$1`, id.String()).
		Scan(&witnessID, &contractID, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		return bundle, "", "", notFound("bundle", id.String())
	}
	if err != nil {
		return bundle, "", "", err
	}
	return bundle, witnessID, contractID, json.Unmarshal(body, &bundle)
}

func (s *Store) ContractsByOutputs(ctx context.Context, outputs []contract.OutputSeal) ([]contract.ContractID, error) {
	if len(outputs) == 0 {
		return nil, nil
	}
	rows, err := s.DB.Query(ctx, `
SELECT DISTINCT contract_id FROM opout_index WHERE output_key=ANY($1) ORDER BY contract_id ASC
`, outputKeys(outputs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanContractIDs(rows)
}

func (s *Store) PublicOpouts(ctx context.Context, id contract.ContractID) ([]contract.Opout, error) {
	rows, err := s.DB.Query(ctx, `
SELECT opout FROM opout_index WHERE contract_id=$1 AND is_public ORDER BY opout ASC
`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOpouts(rows)
}

func (s *Store) OpoutsByOutputs(ctx context.Context, id contract.ContractID, outputs []contract.OutputSeal) ([]contract.Opout, error) {
	if len(outputs) == 0 {
		return nil, nil
	}
	rows, err := s.DB.Query(ctx, `
SELECT opout FROM opout_index WHERE contract_id=$1 AND output_key=ANY($2) ORDER BY opout ASC
`, id.String(), outputKeys(outputs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOpouts(rows)
}

func (s *Store) OpoutsByTerminals(ctx context.Context, terminals []contract.SecretSeal) ([]contract.Opout, error) {
	if len(terminals) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(terminals))
	for _, secret := range terminals {
		keys = append(keys, secret.String())
	}
	rows, err := s.DB.Query(ctx, `
SELECT opout FROM opout_index WHERE secret=ANY($1) ORDER BY opout ASC
`, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOpouts(rows)
}

func (s *Store) StateForOutputs(ctx context.Context, id contract.ContractID, outputs []contract.OutputSeal) ([]inventory.OutputAssignment, error) {
	if len(outputs) == 0 {
		return nil, nil
	}
	byKey := make(map[string]contract.OutputSeal, len(outputs))
	for _, output := range outputs {
		byKey[output.String()] = output
	}
	rows, err := s.DB.Query(ctx, `
SELECT opout, output_key, state FROM opout_index
WHERE contract_id=$1 AND output_key=ANY($2)
ORDER BY opout ASC
`, id.String(), outputKeys(outputs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []inventory.OutputAssignment
	for rows.Next() {
		var rawOpout, rawOutput string
		var stateBody []byte
		if err := rows.Scan(&rawOpout, &rawOutput, &stateBody); err != nil {
			return nil, err
		}
		var oa inventory.OutputAssignment
		if err := oa.Opout.UnmarshalText([]byte(rawOpout)); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(stateBody, &oa.State); err != nil {
			return nil, err
		}
		oa.Output = byKey[rawOutput]
		out = append(out, oa)
	}
	return out, rows.Err()
}

func (s *Store) StoreSchema(ctx context.Context, schema iface.Schema) error {
	body, err := json.Marshal(schema)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
INSERT INTO schemas(schema_id, body) VALUES($1, $2::jsonb) ON CONFLICT (schema_id) DO NOTHING
`, schema.ID().String(), string(body))
	return err
}

func (s *Store) StoreIface(ctx context.Context, ifc iface.Iface) error {
	body, err := json.Marshal(ifc)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
INSERT INTO ifaces(iface_id, name, body) VALUES($1, $2, $3::jsonb) ON CONFLICT (iface_id) DO NOTHING
`, ifc.ID().String(), ifc.Name, string(body))
	return err
}

func (s *Store) StoreIfaceImpl(ctx context.Context, impl iface.IfaceImpl) error {
	body, err := json.Marshal(impl)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
INSERT INTO iface_impls(impl_id, schema_id, iface_id, body) VALUES($1, $2, $3, $4::jsonb)
ON CONFLICT (impl_id) DO NOTHING
`, impl.ID().String(), impl.SchemaID.String(), impl.IfaceID.String(), string(body))
	return err
}

func (s *Store) StoreSuppl(ctx context.Context, suppl iface.Supplement) error {
	body, err := json.Marshal(suppl)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
INSERT INTO suppls(contract_id, body) VALUES($1, $2::jsonb)
ON CONFLICT (contract_id) DO UPDATE SET body=EXCLUDED.body
`, suppl.ContractID.String(), string(body))
	return err
}

func (s *Store) StoreGenesis(ctx context.Context, genesis contract.Genesis) error {
	contractID := genesis.ContractID()
	body, err := json.Marshal(genesis)
	if err != nil {
		return err
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
INSERT INTO geneses(contract_id, schema_id, body) VALUES($1, $2, $3::jsonb)
ON CONFLICT (contract_id) DO NOTHING
`, contractID.String(), genesis.SchemaID.String(), string(body))
	if err != nil {
		return err
	}

	// Genesis state is indexed under the contract id itself; its seals
	// are always explicit, so a zero witness never substitutes a txid.
	schema, err := s.contractSchemaTx(ctx, tx, genesis.SchemaID)
	if err != nil {
		return err
	}
	opID := contract.OpID(contractID)
	for ty, assignments := range genesis.Assignments {
		for no, assignment := range assignments {
			opout := contract.Opout{Op: opID, Ty: ty, No: uint16(no)}
			if err := upsertOpout(ctx, tx, contractID, opout, assignment, contract.WitnessID{}, schema.IsPublic(ty)); err != nil {
				return err
			}
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) StoreSigs(ctx context.Context, contentID containers.ContentID, sigs containers.ContentSigs) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, contentID.String()); err != nil {
		return err
	}

	merged := sigs
	var existingBody []byte
	err = tx.QueryRow(ctx, `SELECT body FROM content_sigs WHERE content_id=$1`, contentID.String()).Scan(&existingBody)
	switch {
	case err == nil:
		var existing containers.ContentSigs
		if err := json.Unmarshal(existingBody, &existing); err != nil {
			return err
		}
		merged, err = existing.Merge(sigs)
		if err != nil {
			return err
		}
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return err
	}

	body, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO content_sigs(content_id, body) VALUES($1, $2::jsonb)
ON CONFLICT (content_id) DO UPDATE SET body=EXCLUDED.body
`, contentID.String(), string(body)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) StoreSealSecret(ctx context.Context, seal contract.GraphSeal) error {
	body, err := json.Marshal(seal)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
INSERT INTO seal_secrets(secret, body) VALUES($1, $2::jsonb) ON CONFLICT (secret) DO NOTHING
`, seal.Conceal().String(), string(body))
	return err
}

func (s *Store) SealSecrets(ctx context.Context) ([]contract.GraphSeal, error) {
	rows, err := s.DB.Query(ctx, `SELECT body FROM seal_secrets ORDER BY secret ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []contract.GraphSeal
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var seal contract.GraphSeal
		if err := json.Unmarshal(body, &seal); err != nil {
			return nil, err
		}
		out = append(out, seal)
	}
	return out, rows.Err()
}

// Fold records one witness and merge-reveals its bundles inside a single
// transaction. An advisory lock on the witness id serializes concurrent
// folds of the same witness; any merge conflict rolls the whole fold
// back.
func (s *Store) Fold(ctx context.Context, witness containers.SealWitness, bundles map[contract.ContractID]contract.TransitionBundle) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	witnessKey := witness.WitnessID.String()
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, witnessKey); err != nil {
		return err
	}

	anchor := witness.Anchor
	var existingAnchor []byte
	err = tx.QueryRow(ctx, `SELECT anchor FROM witnesses WHERE witness_id=$1`, witnessKey).Scan(&existingAnchor)
	switch {
	case err == nil:
		var known containers.Anchor
		if err := json.Unmarshal(existingAnchor, &known); err != nil {
			return err
		}
		anchor, err = known.Merge(witness.Anchor)
		if err != nil {
			return err
		}
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return err
	}
	anchorBody, err := json.Marshal(anchor)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO witnesses(witness_id, anchor) VALUES($1, $2::jsonb)
ON CONFLICT (witness_id) DO UPDATE SET anchor=EXCLUDED.anchor
`, witnessKey, string(anchorBody)); err != nil {
		return err
	}

	for contractID, bundle := range bundles {
		merged := bundle
		bundleKey := bundle.BundleID().String()
		var existingBody []byte
		err := tx.QueryRow(ctx, `SELECT body FROM bundles WHERE bundle_id=$1`, bundleKey).Scan(&existingBody)
		switch {
		case err == nil:
			var known contract.TransitionBundle
			if err := json.Unmarshal(existingBody, &known); err != nil {
				return err
			}
			merged, err = known.MergeReveal(bundle)
			if err != nil {
				return err
			}
		case errors.Is(err, pgx.ErrNoRows):
		default:
			return err
		}
		body, err := json.Marshal(merged)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO bundles(bundle_id, witness_id, contract_id, body) VALUES($1, $2, $3, $4::jsonb)
ON CONFLICT (bundle_id) DO UPDATE SET body=EXCLUDED.body
`, bundleKey, witnessKey, contractID.String(), string(body)); err != nil {
			return err
		}

		for _, opID := range merged.TransitionIDs() {
			if _, err := tx.Exec(ctx, `
INSERT INTO bundle_ops(op_id, bundle_id) VALUES($1, $2) ON CONFLICT (op_id) DO NOTHING
`, opID.String(), bundleKey); err != nil {
				return err
			}
		}

		schema, err := s.contractSchemaForContractTx(ctx, tx, contractID)
		if err != nil {
			return err
		}
		for opID, transition := range merged.KnownTransitions {
			for ty, assignments := range transition.Assignments {
				for no, assignment := range assignments {
					opout := contract.Opout{Op: opID, Ty: ty, No: uint16(no)}
					if err := upsertOpout(ctx, tx, contractID, opout, assignment, witness.WitnessID, schema.IsPublic(ty)); err != nil {
						return err
					}
				}
			}
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) contractSchemaForContractTx(ctx context.Context, tx pgx.Tx, contractID contract.ContractID) (iface.Schema, error) {
	var schemaID string
	err := tx.QueryRow(ctx, `SELECT schema_id FROM geneses WHERE contract_id=$1`, contractID.String()).Scan(&schemaID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Bundles can arrive ahead of their genesis; public-state
		// classification then waits for the next fold.
		return iface.Schema{}, nil
	}
	if err != nil {
		return iface.Schema{}, err
	}
	var sid contract.SchemaID
	if err := sid.UnmarshalText([]byte(schemaID)); err != nil {
		return iface.Schema{}, err
	}
	return s.contractSchemaTx(ctx, tx, sid)
}

func (s *Store) contractSchemaTx(ctx context.Context, tx pgx.Tx, schemaID contract.SchemaID) (iface.Schema, error) {
	var body []byte
	err := tx.QueryRow(ctx, `SELECT body FROM schemas WHERE schema_id=$1`, schemaID.String()).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return iface.Schema{}, nil
	}
	if err != nil {
		return iface.Schema{}, err
	}
	var schema iface.Schema
	return schema, json.Unmarshal(body, &schema)
}

func upsertOpout(ctx context.Context, tx pgx.Tx, contractID contract.ContractID, opout contract.Opout, assignment contract.Assignment, witnessID contract.WitnessID, public bool) error {
	var outputKey *string
	if assignment.Seal.IsRevealed() {
		key := assignment.Seal.Revealed.Resolve(witnessID).String()
		outputKey = &key
	}
	stateBody, err := json.Marshal(assignment.State)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
INSERT INTO opout_index(contract_id, opout, output_key, secret, is_public, state)
VALUES($1, $2, $3, $4, $5, $6::jsonb)
ON CONFLICT (contract_id, opout) DO UPDATE SET
  output_key=COALESCE(EXCLUDED.output_key, opout_index.output_key),
  state=EXCLUDED.state
`, contractID.String(), opout.String(), outputKey, assignment.Seal.Secret().String(), public, string(stateBody))
	return err
}

func outputKeys(outputs []contract.OutputSeal) []string {
	keys := make([]string, 0, len(outputs))
	for _, output := range outputs {
		keys = append(keys, output.String())
	}
	return keys
}

func scanContractIDs(rows pgx.Rows) ([]contract.ContractID, error) {
	var out []contract.ContractID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var id contract.ContractID
		if err := id.UnmarshalText([]byte(raw)); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanOpouts(rows pgx.Rows) ([]contract.Opout, error) {
	var out []contract.Opout
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var opout contract.Opout
		if err := opout.UnmarshalText([]byte(raw)); err != nil {
			return nil, err
		}
		out = append(out, opout)
	}
	return out, rows.Err()
}
