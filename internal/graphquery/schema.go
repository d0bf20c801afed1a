package graphquery

// schemaText grounds query generation. It lists every label, property and
// edge the graph loader writes.
const schemaText = `
Graph database schema (Neo4j, Cypher):

NODES:
- Repository: name (unique), path, total_files, total_functions, total_classes
- File: full_path (unique), path, lines
- Function: id (unique, "<full_path>::<name>::<line>"), name, line, args (list), docstring
- Class: id (unique, "<full_path>::<name>::<line>"), name, line, methods (list of method names), docstring
  Methods are also Function nodes defined by the class's File; there is no Class-to-Function edge.
- Module: name (unique); an imported dependency
- Commit: sha (unique), author, date, message

RELATIONSHIPS:
- (Repository)-[:CONTAINS]->(File): the repository contains the file
- (File)-[:DEFINES]->(Function): the file defines the function
- (File)-[:DEFINES]->(Class): the file defines the class
- (Function)-[:CALLS]->(Function): the function calls another function of the same repository (resolved by name)
- (File)-[:IMPORTS]->(Module): the file imports the module
- (Repository)-[:HAS_COMMIT]->(Commit): one of the repository's most recent commits

EXAMPLE QUERIES:
1. Files of a repository:
   MATCH (r:Repository {name: 'repo_name'})-[:CONTAINS]->(f:File) RETURN f.path

2. Functions defined in a file:
   MATCH (f:File {full_path: 'path/to/file.py'})-[:DEFINES]->(fn:Function) RETURN fn.name, fn.line

3. All functions of a repository:
   MATCH (r:Repository {name: 'repo_name'})-[:CONTAINS]->(f:File)-[:DEFINES]->(fn:Function) RETURN fn.name, f.path

4. Callers of a function:
   MATCH (caller:Function)-[:CALLS]->(callee:Function {name: 'function_name'}) RETURN caller.name

5. Dependencies of a repository:
   MATCH (r:Repository {name: 'repo_name'})-[:CONTAINS]->(f:File)-[:IMPORTS]->(m:Module) RETURN DISTINCT m.name

6. Recent commits of a repository:
   MATCH (r:Repository {name: 'repo_name'})-[:HAS_COMMIT]->(c:Commit) RETURN c.message, c.author, c.date

7. Methods of a class:
   MATCH (f:File)-[:DEFINES]->(c:Class {name: 'ClassName'}), (f)-[:DEFINES]->(fn:Function)
   WHERE fn.name IN c.methods AND fn.line > c.line
   RETURN fn.name, fn.line

Write valid Neo4j Cypher only. Do not wrap the query in markdown or code blocks.
`

const promptTemplate = `You are a Neo4j Cypher query expert. Using the schema below, write one valid Cypher query that answers the user's question.

SCHEMA:
%s

USER QUESTION: %s

INSTRUCTIONS:
- Output ONLY the Cypher query
- No explanations, no markdown, no code blocks
- The query must be syntactically valid Neo4j Cypher
- Return the raw query text only

Cypher query:`

const (
	listRepositoriesQuery = `
MATCH (r:Repository)
RETURN r.name AS name, r.total_files AS files, r.total_functions AS functions, r.total_classes AS classes
ORDER BY name`

	repositoryInfoQuery = `
MATCH (r:Repository {name: $name})
OPTIONAL MATCH (r)-[:CONTAINS]->(f:File)
OPTIONAL MATCH (r)-[:HAS_COMMIT]->(c:Commit)
RETURN r.name AS name, r.path AS path,
       r.total_files AS total_files, r.total_functions AS total_functions, r.total_classes AS total_classes,
       count(DISTINCT f) AS actual_files, count(DISTINCT c) AS commits`
)
