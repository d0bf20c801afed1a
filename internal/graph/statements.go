package graph

// Uniqueness constraints, one per node key. IF NOT EXISTS makes them
// idempotent.
var constraints = []string{
	"CREATE CONSTRAINT repository_name IF NOT EXISTS FOR (r:Repository) REQUIRE r.name IS UNIQUE",
	"CREATE CONSTRAINT file_full_path IF NOT EXISTS FOR (f:File) REQUIRE f.full_path IS UNIQUE",
	"CREATE CONSTRAINT function_id IF NOT EXISTS FOR (fn:Function) REQUIRE fn.id IS UNIQUE",
	"CREATE CONSTRAINT class_id IF NOT EXISTS FOR (c:Class) REQUIRE c.id IS UNIQUE",
	"CREATE CONSTRAINT module_name IF NOT EXISTS FOR (m:Module) REQUIRE m.name IS UNIQUE",
	"CREATE CONSTRAINT commit_sha IF NOT EXISTS FOR (c:Commit) REQUIRE c.sha IS UNIQUE",
}

const mergeRepository = `
MERGE (r:Repository {name: $name})
SET r.path = $path,
    r.total_files = $total_files,
    r.total_functions = $total_functions,
    r.total_classes = $total_classes`

const mergeFile = `
MATCH (r:Repository {name: $repo})
MERGE (f:File {full_path: $full_path})
SET f.path = $path, f.lines = $lines
MERGE (r)-[:CONTAINS]->(f)`

// mergeFunctions and mergeClasses match the owning File first, so nothing is
// written when it is missing and loaded comes back 0.
const mergeFunctions = `
MATCH (f:File {full_path: $full_path})
UNWIND $functions AS fn
MERGE (n:Function {id: fn.id})
SET n.name = fn.name, n.line = fn.line, n.args = fn.args, n.docstring = fn.docstring
MERGE (f)-[:DEFINES]->(n)
RETURN count(n) AS loaded`

const mergeClasses = `
MATCH (f:File {full_path: $full_path})
UNWIND $classes AS cls
MERGE (n:Class {id: cls.id})
SET n.name = cls.name, n.line = cls.line, n.methods = cls.methods, n.docstring = cls.docstring
MERGE (f)-[:DEFINES]->(n)
RETURN count(n) AS loaded`

const pruneImports = `
MATCH (f:File {full_path: $full_path})-[i:IMPORTS]->(m:Module)
WHERE NOT m.name IN $modules
DELETE i`

const mergeImports = `
MATCH (f:File {full_path: $full_path})
UNWIND $modules AS name
MERGE (m:Module {name: name})
MERGE (f)-[:IMPORTS]->(m)`

const mergeCommits = `
MATCH (r:Repository {name: $repo})
UNWIND $commits AS c
MERGE (k:Commit {sha: c.sha})
SET k.author = c.author, k.date = c.date, k.message = c.message
MERGE (r)-[:HAS_COMMIT]->(k)`

const clearCalls = `
MATCH (:Repository {name: $repo})-[:CONTAINS]->(:File)-[:DEFINES]->(:Function)-[c:CALLS]->()
DELETE c`

// mergeCalls resolves callees by name among the functions of the same
// repository. Every same-named function becomes a target.
const mergeCalls = `
MATCH (r:Repository {name: $repo})
UNWIND $calls AS call
MATCH (caller:Function {id: call.caller})
MATCH (r)-[:CONTAINS]->(:File)-[:DEFINES]->(callee:Function {name: call.callee})
MERGE (caller)-[:CALLS]->(callee)
RETURN count(*) AS edges`

const pruneDefinitions = `
MATCH (:Repository {name: $repo})-[:CONTAINS]->(:File)-[:DEFINES]->(n)
WHERE (n:Function OR n:Class) AND NOT n.id IN $ids
DETACH DELETE n
RETURN count(n) AS removed`

const pruneFiles = `
MATCH (:Repository {name: $repo})-[:CONTAINS]->(f:File)
WHERE NOT f.full_path IN $paths
OPTIONAL MATCH (f)-[:DEFINES]->(d)
DETACH DELETE d, f
RETURN count(DISTINCT f) AS removed`

const pruneCommits = `
MATCH (:Repository {name: $repo})-[h:HAS_COMMIT]->(c:Commit)
WHERE NOT c.sha IN $shas
DELETE h
WITH c
WHERE NOT EXISTS { ()-[:HAS_COMMIT]->(c) }
DETACH DELETE c
RETURN count(c) AS removed`
